package models

import (
	"time"

	"gorm.io/gorm"
)

// Provider identifies which carrier integration a number or market sends
// through.
type Provider string

const (
	ProviderTelnyx      Provider = "telnyx"
	ProviderTwilio      Provider = "twilio"
	ProviderInteliquent Provider = "inteliquent"

	ProviderDefault = ProviderTelnyx
)

// Market is a geographic/provider grouping that owns a pool of phone numbers.
// Verizon-destined traffic is only deliverable through the Twilio market.
type Market struct {
	gorm.Model

	CompanyID uint   `gorm:"not null;index" json:"company_id"`
	Name      string `gorm:"not null" json:"name"`

	PhoneProvider Provider `gorm:"default:'telnyx'" json:"phone_provider"`

	// Round-robin cursor into the market's active number pool.
	LastIndexAssigned int `gorm:"default:0" json:"last_index_assigned"`

	// Daily initial-send limit enforcement.
	TotalInitialSMSSentTodayCount int `gorm:"default:0" json:"total_initial_sms_sent_today_count"`
	TotalInitialSendSMSDailyLimit int `gorm:"default:3000" json:"total_initial_send_sms_daily_limit"`

	// Spam cooldown: set when a stats batch shows a spam-heavy result pattern.
	CurrentSpamCooldownPeriodEnd *time.Time `json:"current_spam_cooldown_period_end"`

	Company      Company       `json:"-"`
	PhoneNumbers []PhoneNumber `gorm:"foreignKey:MarketID" json:"phone_numbers,omitempty"`
}

// InSpamCooldown reports whether the market is currently paused by the spam
// cooldown window.
func (m *Market) InSpamCooldown(at time.Time) bool {
	return m.CurrentSpamCooldownPeriodEnd != nil && at.Before(*m.CurrentSpamCooldownPeriodEnd)
}

// DailyLimitReached reports whether the market has used up today's initial
// send allowance.
func (m *Market) DailyLimitReached() bool {
	return m.TotalInitialSMSSentTodayCount > m.TotalInitialSendSMSDailyLimit
}
