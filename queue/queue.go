// Package queue carries dispatch jobs between the HTTP layer that enqueues a
// batch and the workers that attempt each send.
package queue

import (
	"encoding/json"
	"sync"

	"github.com/streadway/amqp"
)

// DispatchJob is one queued dispatch attempt for a campaign prospect.
type DispatchJob struct {
	CampaignProspectID uint `json:"campaign_prospect_id"`
	SMSTemplateID      uint `json:"sms_template_id"`
	SentByUserID       uint `json:"sent_by_user_id"`
	ForceSkip          bool `json:"force_skip"`
}

// Delivery is one received job plus its acknowledgement handle. The worker
// must settle every delivery: Ack when the attempt completed, Nack to put the
// job back on the queue for another worker.
type Delivery struct {
	Job  DispatchJob
	ack  func() error
	nack func() error
}

// NewDelivery builds a delivery around explicit settle callbacks, for
// transports implemented outside this package.
func NewDelivery(job DispatchJob, ack, nack func() error) Delivery {
	return Delivery{Job: job, ack: ack, nack: nack}
}

func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack requeues the job.
func (d *Delivery) Nack() error {
	if d.nack == nil {
		return nil
	}
	return d.nack()
}

// Queue is the transport the batch driver publishes to and workers consume
// from.
type Queue interface {
	Publish(job DispatchJob) error
	// Consume returns a channel of deliveries. The channel closes when the
	// queue shuts down.
	Consume() (<-chan Delivery, error)
	Close() error
}

// AMQPQueue is the production transport, one durable queue on RabbitMQ.
type AMQPQueue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string
}

func NewAMQPQueue(url, name string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	_, err = ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &AMQPQueue{conn: conn, channel: ch, name: name}, nil
}

func (q *AMQPQueue) Publish(job DispatchJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.channel.Publish(
		"",
		q.name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Consume hands each message to the worker unacked. The broker holds the
// message until the delivery is settled, so a worker crash or an aborted
// attempt redelivers instead of dropping the prospect.
func (q *AMQPQueue) Consume() (<-chan Delivery, error) {
	deliveries, err := q.channel.Consume(
		q.name,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range deliveries {
			d := d // shadow for go <1.22 per-loop variable semantics
			var job DispatchJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				// Malformed payload, requeueing would loop forever.
				d.Nack(false, false)
				continue
			}
			out <- Delivery{
				Job:  job,
				ack:  func() error { return d.Ack(false) },
				nack: func() error { return d.Nack(false, true) },
			}
		}
	}()
	return out, nil
}

func (q *AMQPQueue) Close() error {
	q.channel.Close()
	return q.conn.Close()
}

// MemoryQueue is the in-process transport used in tests and sandbox mode.
type MemoryQueue struct {
	jobs      chan DispatchJob
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs: make(chan DispatchJob, size),
		done: make(chan struct{}),
	}
}

func (q *MemoryQueue) Publish(job DispatchJob) error {
	select {
	case <-q.done:
		return amqp.ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return amqp.ErrClosed
	}
}

// Consume wraps each job in a delivery whose Nack republishes it, so the
// redelivery contract holds in sandbox mode too. Jobs already buffered when
// the queue closes are still flushed to the consumer.
func (q *MemoryQueue) Consume() (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-q.done:
				for {
					select {
					case job := <-q.jobs:
						out <- q.wrap(job)
					default:
						return
					}
				}
			case job := <-q.jobs:
				out <- q.wrap(job)
			}
		}
	}()
	return out, nil
}

func (q *MemoryQueue) wrap(job DispatchJob) Delivery {
	return Delivery{
		Job:  job,
		nack: func() error { return q.Publish(job) },
	}
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
