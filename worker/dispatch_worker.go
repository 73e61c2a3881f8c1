package worker

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"leadpilot/metrics"
	"leadpilot/queue"
)

// Dispatcher runs one full dispatch attempt for a queued job.
type Dispatcher interface {
	AttemptBatchText(ctx context.Context, campaignProspectID, templateID, sentByUserID uint, forceSkip bool) error
}

// DispatchWorker drains the dispatch queue with a pool of goroutines, one
// full dispatch attempt per job.
type DispatchWorker struct {
	Queue        queue.Queue
	Orchestrator Dispatcher
	Concurrency  int
	Log          *logrus.Logger
}

func NewDispatchWorker(q queue.Queue, orchestrator Dispatcher, concurrency int, log *logrus.Logger) *DispatchWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &DispatchWorker{
		Queue:        q,
		Orchestrator: orchestrator,
		Concurrency:  concurrency,
		Log:          log,
	}
}

// Start consumes jobs until the context is cancelled or the queue closes.
// It blocks; run it in a goroutine.
func (w *DispatchWorker) Start(ctx context.Context) error {
	w.Log.WithField("concurrency", w.Concurrency).Info("starting dispatch worker")

	deliveries, err := w.Queue.Consume()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < w.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						return
					}
					w.process(ctx, d)
				}
			}
		}()
	}
	wg.Wait()
	w.Log.Info("dispatch worker stopped")
	return nil
}

// process settles the delivery: ack on any completed attempt, nack on an
// aborted one so the queue redelivers the job.
func (w *DispatchWorker) process(ctx context.Context, d queue.Delivery) {
	job := d.Job
	err := w.Orchestrator.AttemptBatchText(ctx, job.CampaignProspectID, job.SMSTemplateID, job.SentByUserID, job.ForceSkip)
	if err != nil {
		metrics.DispatchJobs.WithLabelValues("error").Inc()
		w.Log.WithFields(logrus.Fields{
			"campaign_prospect_id": job.CampaignProspectID,
			"error":                err,
		}).Error("dispatch attempt failed")
		if nackErr := d.Nack(); nackErr != nil {
			w.Log.WithField("error", nackErr).Error("requeueing dispatch job failed")
		}
		return
	}
	metrics.DispatchJobs.WithLabelValues("ok").Inc()
	if ackErr := d.Ack(); ackErr != nil {
		w.Log.WithField("error", ackErr).Error("acking dispatch job failed")
	}
}
