package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// PhoneNumberStatus is the lifecycle state of a pooled sending number.
type PhoneNumberStatus string

const (
	PhoneStatusPending  PhoneNumberStatus = "pending"
	PhoneStatusActive   PhoneNumberStatus = "active"
	PhoneStatusInactive PhoneNumberStatus = "inactive"
	PhoneStatusCooldown PhoneNumberStatus = "cooldown"
	PhoneStatusReleased PhoneNumberStatus = "released"
)

// PhoneNumber is a number purchased from a provider and held in a market's
// sending pool.
type PhoneNumber struct {
	gorm.Model

	CompanyID uint `gorm:"not null;index" json:"company_id"`
	MarketID  uint `gorm:"not null;index" json:"market_id"`

	Phone      string            `gorm:"index;not null" json:"phone"` // 10 digit, no country code
	ProviderID string            `json:"provider_id"`
	Status     PhoneNumberStatus `gorm:"default:'active';index" json:"status"`
	Provider   Provider          `gorm:"default:'telnyx'" json:"provider"`

	LastSendUTC     *time.Time `json:"last_send_utc"`
	LastReceivedUTC *time.Time `json:"last_received_utc"`
	TotalSent       int        `gorm:"default:0" json:"total_sent"`
	TotalSentToday  int        `gorm:"default:0" json:"total_sent_today"`
	TotalOptOuts    int        `gorm:"default:0" json:"total_opt_outs"`
	TotalAutoDead   int        `gorm:"default:0" json:"total_auto_dead"`

	Company Company `json:"-"`
	Market  Market  `json:"-"`
}

// FullNumber returns the E.164 form used on the wire.
func (p *PhoneNumber) FullNumber() string {
	return fmt.Sprintf("+1%s", p.Phone)
}

// IsReleased reports whether the number has left the pool for good.
func (p *PhoneNumber) IsReleased() bool {
	return p.Status == PhoneStatusReleased
}
