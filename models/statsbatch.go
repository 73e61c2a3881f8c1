package models

import (
	"time"

	"gorm.io/gorm"
)

// StatsBatchCap is the number of dispatch attempts a batch holds before a new
// one is rolled.
const StatsBatchCap = 100

// StatsBatch groups send/receive stats into rolling buckets of 100 dispatch
// attempts. It is used to monitor delivery rates and spot a bad group of
// numbers inside a campaign.
type StatsBatch struct {
	gorm.Model

	CampaignID uint     `gorm:"not null;index" json:"campaign_id"`
	MarketID   uint     `gorm:"index" json:"market_id"`
	Provider   Provider `gorm:"default:'telnyx'" json:"provider"`

	BatchNumber int `gorm:"default:0" json:"batch_number"`

	// Aggregated fields
	Sent             int `gorm:"default:0" json:"sent"`
	Delivered        int `gorm:"default:0" json:"delivered"`
	Received         int `gorm:"default:0" json:"received"`
	ReceivedDeadAuto int `gorm:"default:0" json:"received_dead_auto"`
	SendAttempt      int `gorm:"default:0" json:"send_attempt"`

	FirstSendUTC *time.Time `json:"first_send_utc"`
	LastSendUTC  *time.Time `json:"last_send_utc"`

	// Per-reason skip tallies
	SkippedHasPreviousResponse int `gorm:"default:0" json:"skipped_has_previous_response"`
	SkippedMsgThresholdDays    int `gorm:"default:0" json:"skipped_msg_threshold_days"`
	SkippedInternalDNC         int `gorm:"default:0" json:"skipped_internal_dnc"`
	SkippedLitigator           int `gorm:"default:0" json:"skipped_litigator"`
	SkippedOptedOut            int `gorm:"default:0" json:"skipped_opted_out"`
	SkippedVerizon             int `gorm:"default:0" json:"skipped_verizon"`
	SkippedOutgoingNotSet      int `gorm:"default:0" json:"skipped_outgoing_not_set"`
	SkippedWrongNumber         int `gorm:"default:0" json:"skipped_wrong_number"`
	SkippedForce               int `gorm:"default:0" json:"skipped_force"`

	Campaign Campaign `json:"-"`
	Market   Market   `json:"-"`
}

// Full reports whether the batch has reached its attempt cap and a new batch
// should be rolled.
func (b *StatsBatch) Full() bool {
	return b.SendAttempt >= StatsBatchCap
}

// TotalSkipped sums the per-reason skip tallies.
func (b *StatsBatch) TotalSkipped() int {
	return b.SkippedHasPreviousResponse +
		b.SkippedMsgThresholdDays +
		b.SkippedInternalDNC +
		b.SkippedLitigator +
		b.SkippedOptedOut +
		b.SkippedVerizon +
		b.SkippedOutgoingNotSet +
		b.SkippedWrongNumber +
		b.SkippedForce
}

// ResponseRate is received over delivered, as a whole percent.
func (b *StatsBatch) ResponseRate() int {
	if b.Received > 0 && b.Delivered > 0 {
		return int(float64(b.Received)/float64(b.Delivered)*100 + 0.5)
	}
	return 0
}

// DeliveredPercent is delivered over non-skipped attempts, as a whole percent.
func (b *StatsBatch) DeliveredPercent() int {
	totalNonSkipped := b.SendAttempt - b.TotalSkipped()
	if b.Delivered > 0 && totalNonSkipped > 0 {
		return int(float64(b.Delivered)/float64(totalNonSkipped)*100 + 0.5)
	}
	return 0
}

// SkipDetails is the per-reason breakdown surfaced on campaign dashboards.
func (b *StatsBatch) SkipDetails() map[string]int {
	return map[string]int{
		"previous_response": b.SkippedHasPreviousResponse,
		"threshold":         b.SkippedMsgThresholdDays,
		"dnc":               b.SkippedInternalDNC,
		"litigator":         b.SkippedLitigator,
		"opted_out":         b.SkippedOptedOut,
		"carrier":           b.SkippedVerizon,
		"outgoing_not_set":  b.SkippedOutgoingNotSet,
		"wrong_number":      b.SkippedWrongNumber,
		"forced":            b.SkippedForce,
	}
}

// SkipCounterColumn maps a skip reason to the batch counter column that
// records it.
func SkipCounterColumn(reason SkipReason) string {
	switch reason {
	case SkipReasonHasResponded:
		return "skipped_has_previous_response"
	case SkipReasonThreshold:
		return "skipped_msg_threshold_days"
	case SkipReasonCompanyDNC, SkipReasonPublicDNC:
		return "skipped_internal_dnc"
	case SkipReasonLitigator:
		return "skipped_litigator"
	case SkipReasonOptedOut:
		return "skipped_opted_out"
	case SkipReasonVerizon:
		return "skipped_verizon"
	case SkipReasonOutgoingNotSet:
		return "skipped_outgoing_not_set"
	case SkipReasonWrongNumber:
		return "skipped_wrong_number"
	case SkipReasonForced:
		return "skipped_force"
	}
	return ""
}
