// Package metrics exposes the dispatch pipeline's Prometheus counters,
// served on /metrics by the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadpilot_messages_sent_total",
		Help: "Bulk messages accepted by a provider, by provider.",
	}, []string{"provider"})

	MessagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadpilot_messages_skipped_total",
		Help: "Dispatch attempts skipped before sending, by reason.",
	}, []string{"reason"})

	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadpilot_messages_delivered_total",
		Help: "Provider delivery confirmations received.",
	})

	MessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadpilot_messages_received_total",
		Help: "Inbound prospect replies received.",
	})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadpilot_provider_errors_total",
		Help: "Provider API rejections, by provider and error code.",
	}, []string{"provider", "code"})

	DispatchJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadpilot_dispatch_jobs_total",
		Help: "Dispatch jobs consumed from the queue, by result.",
	}, []string{"result"})

	SpamCooldowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadpilot_market_spam_cooldowns_total",
		Help: "Markets paused by the spam cooldown check.",
	})
)
