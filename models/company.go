package models

import (
	"math/rand"
	"time"

	"gorm.io/gorm"
)

// Company represents a tenant account. Campaigns, prospects and phone numbers
// all hang off a company.
type Company struct {
	gorm.Model

	Name     string `gorm:"not null" json:"name"`
	Timezone string `gorm:"default:'US/Mountain'" json:"timezone"`

	// Subscription status gates background processing
	SubscriptionStatus string `gorm:"default:'active'" json:"subscription_status"` // active, past_due, canceled

	// Messaging compliance settings
	ThresholdDays        int  `gorm:"default:30" json:"threshold_days"`
	ThresholdExempt      bool `gorm:"default:false" json:"threshold_exempt"`
	AutoFilterMessages   bool `gorm:"default:true" json:"auto_filter_messages"`
	EnableOptionalOptOut bool `gorm:"default:false" json:"enable_optional_opt_out"`

	// Quiet hours: outbound bulk messaging is only legal within this local window.
	MessagingStartHour int `gorm:"default:8" json:"messaging_start_hour"`
	MessagingEndHour   int `gorm:"default:21" json:"messaging_end_hour"`

	// Outgoing identity used when filling message templates
	UseSenderName                bool        `gorm:"default:false" json:"use_sender_name"`
	SendCarrierApprovedTemplates bool        `gorm:"default:false" json:"send_carrier_approved_templates"`
	OutgoingCompanyNames         StringSlice `gorm:"type:jsonb;serializer:json" json:"outgoing_company_names"`
	OutgoingUserNames            StringSlice `gorm:"type:jsonb;serializer:json" json:"outgoing_user_names"`
	DefaultAlternateMessage      string      `json:"default_alternate_message"`

	AutoDeadEnabled *bool `json:"auto_dead_enabled"`

	// Relations
	Campaigns []Campaign `gorm:"foreignKey:CompanyID" json:"campaigns,omitempty"`
	Prospects []Prospect `gorm:"foreignKey:CompanyID" json:"prospects,omitempty"`
}

// StringSlice is stored as a jsonb column.
type StringSlice []string

// IsMessagingAllowedNow reports whether bulk messaging is currently inside the
// company's legal quiet-hours window.
func (c *Company) IsMessagingAllowedNow() bool {
	return c.MessagingAllowedAt(time.Now())
}

// MessagingAllowedAt is the clock-injectable form of IsMessagingAllowedNow.
func (c *Company) MessagingAllowedAt(at time.Time) bool {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	hour := at.In(loc).Hour()
	return hour >= c.MessagingStartHour && hour < c.MessagingEndHour
}

// HasValidOutgoing reports whether the company has configured at least one
// outgoing company name, required for identity-bearing templates.
func (c *Company) HasValidOutgoing() bool {
	return len(c.OutgoingCompanyNames) > 0
}

// RandomOutgoingCompanyName returns one of the configured outgoing company
// names, or empty when none are configured.
func (c *Company) RandomOutgoingCompanyName() string {
	if len(c.OutgoingCompanyNames) == 0 {
		return ""
	}
	return c.OutgoingCompanyNames[rand.Intn(len(c.OutgoingCompanyNames))]
}

// RandomOutgoingUserName returns one of the configured outgoing user first
// names, or empty when none are configured.
func (c *Company) RandomOutgoingUserName() string {
	if len(c.OutgoingUserNames) == 0 {
		return ""
	}
	return c.OutgoingUserNames[rand.Intn(len(c.OutgoingUserNames))]
}

// OutgoingCompanyName returns the configured name at index i, clamping out of
// range indexes to the first entry.
func (c *Company) OutgoingCompanyName(i int) string {
	if len(c.OutgoingCompanyNames) == 0 {
		return ""
	}
	if i < 0 || i >= len(c.OutgoingCompanyNames) {
		i = 0
	}
	return c.OutgoingCompanyNames[i]
}

// User is the rep that triggers batch sends. Authentication lives outside this
// service; we only need the identity for sender-name substitution and audit.
type User struct {
	gorm.Model

	CompanyID uint   `gorm:"not null;index" json:"company_id"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Company Company `json:"-"`
}
