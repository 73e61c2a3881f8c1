package models

import (
	"gorm.io/gorm"
)

// Campaign is a configured bulk-messaging effort tied to a market and an SMS
// template. Campaigns are archived, never hard-deleted.
type Campaign struct {
	gorm.Model

	CompanyID uint   `gorm:"not null;index" json:"company_id"`
	MarketID  uint   `gorm:"not null;index" json:"market_id"`
	Name      string `gorm:"not null" json:"name"`

	SMSTemplateID *uint `json:"sms_template_id"`

	IsArchived bool `gorm:"default:false" json:"is_archived"`

	// Follow-up campaigns can retain the numbers already assigned to their
	// prospects instead of drawing from the pool again.
	IsFollowup    bool `gorm:"default:false" json:"is_followup"`
	RetainNumbers bool `gorm:"default:false" json:"retain_numbers"`

	// Skip prospects that have already responded in a previous campaign.
	SkipProspectsWhoMessaged bool `gorm:"default:true" json:"skip_prospects_who_messaged"`

	CreatedByID *uint `json:"created_by_id"`

	Company     Company       `json:"-"`
	Market      Market        `json:"-"`
	SMSTemplate *SMSTemplate  `gorm:"foreignKey:SMSTemplateID" json:"-"`
	Stats       CampaignStats `gorm:"foreignKey:CampaignID" json:"stats,omitempty"`
}

// CampaignStats carries the campaign's denormalized aggregate counters. All
// increments go through single-statement atomic updates; read-modify-write on
// these columns is a bug.
type CampaignStats struct {
	gorm.Model

	CampaignID uint `gorm:"uniqueIndex;not null" json:"campaign_id"`

	TotalSMSSentCount            int `gorm:"default:0" json:"total_sms_sent_count"`
	TotalSMSReceivedCount        int `gorm:"default:0" json:"total_sms_received_count"`
	TotalSkipped                 int `gorm:"default:0" json:"total_skipped"`
	TotalDNCCount                int `gorm:"default:0" json:"total_dnc_count"`
	TotalWrongNumberCount        int `gorm:"default:0" json:"total_wrong_number_count"`
	TotalAutoDeadCount           int `gorm:"default:0" json:"total_auto_dead_count"`
	TotalInitialSentSkipped      int `gorm:"default:0" json:"total_initial_sent_skipped"`
	TotalIntialSMSSentTodayCount int `gorm:"default:0" json:"total_intial_sms_sent_today_count"`
	HasDeliveredSMSOnlyCount     int `gorm:"default:0" json:"has_delivered_sms_only_count"`

	// Phone-type distribution of the campaign's prospects
	TotalMobile     int `gorm:"default:0" json:"total_mobile"`
	TotalLandline   int `gorm:"default:0" json:"total_landline"`
	TotalPhoneOther int `gorm:"default:0" json:"total_phone_other"`
}

// SkipReason explains why a message was not sent to a campaign prospect.
type SkipReason string

const (
	SkipReasonThreshold      SkipReason = "threshold"
	SkipReasonHasResponded   SkipReason = "has_responded"
	SkipReasonCompanyDNC     SkipReason = "company_dnc"
	SkipReasonPublicDNC      SkipReason = "public_dnc"
	SkipReasonLitigator      SkipReason = "litigator"
	SkipReasonSMSReceipt     SkipReason = "has_receipt"
	SkipReasonForced         SkipReason = "forced"
	SkipReasonOptedOut       SkipReason = "opted_out"
	SkipReasonVerizon        SkipReason = "carrier_verizon"
	SkipReasonCarrier        SkipReason = "carrier"
	SkipReasonOutgoingNotSet SkipReason = "outgoing_not_set"
	SkipReasonWrongNumber    SkipReason = "wrong_number"
)

// SMSStatus values recorded on a campaign prospect after a dispatch attempt.
const (
	SMSStatusSent      = "sent"
	SMSStatusNoCompany = "no_company"
	SMSStatusNoNumber  = "failure6" // no number available in the market pool
)

// CampaignProspect is the dispatch-state record for one prospect within one
// campaign. At rest it is exactly one of unsent, sent or skipped.
type CampaignProspect struct {
	gorm.Model

	CampaignID uint `gorm:"not null;index;uniqueIndex:idx_campaign_prospect" json:"campaign_id"`
	ProspectID uint `gorm:"not null;index;uniqueIndex:idx_campaign_prospect" json:"prospect_id"`

	SMSTemplateID *uint `json:"sms_template_id"`
	StatsBatchID  *uint `gorm:"index" json:"stats_batch_id"`

	Sent       bool       `gorm:"default:false" json:"sent"`
	Skipped    bool       `gorm:"default:false" json:"skipped"`
	SkipReason SkipReason `json:"skip_reason"`
	SMSStatus  string     `json:"sms_status"`

	SortOrder    int  `gorm:"default:1" json:"sort_order"`
	IsFollowupCP bool `gorm:"default:false" json:"is_followup_cp"`

	HasRespondedViaSMS bool `gorm:"default:false" json:"has_responded_via_sms"`
	HasUnreadSMS       bool `gorm:"default:false;index" json:"has_unread_sms"`

	LastMessageStatus string `json:"last_message_status"`
	LastMessageError  string `json:"last_message_error"`

	Campaign   Campaign    `json:"-"`
	Prospect   Prospect    `json:"-"`
	StatsBatch *StatsBatch `gorm:"foreignKey:StatsBatchID" json:"-"`
}

// Transfer resets the campaign prospect into a follow-up campaign. Only the
// dispatch state is reset; response history on the prospect itself survives.
func (cp *CampaignProspect) Transfer(newCampaign *Campaign, resetSkipped bool) {
	cp.CampaignID = newCampaign.ID
	cp.Sent = false
	cp.SMSStatus = ""
	cp.SMSTemplateID = nil
	cp.StatsBatchID = nil
	cp.HasRespondedViaSMS = false
	cp.IsFollowupCP = true

	if resetSkipped {
		cp.Skipped = false
		cp.SkipReason = ""
	}
}

// Pending reports whether the campaign prospect has not yet reached a
// terminal dispatch state.
func (cp *CampaignProspect) Pending() bool {
	return !cp.Sent && !cp.Skipped
}

// MarkSkipped flips the row into the skipped terminal state. Callers persist
// the change themselves, usually inside the same transaction as the batch
// counters.
func (cp *CampaignProspect) MarkSkipped(reason SkipReason) {
	cp.Sent = false
	cp.Skipped = true
	cp.SkipReason = reason
}
