package models

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"leadpilot/utils"
)

// SMSTemplate is the message body a campaign sends, with an alternate body
// used when a prospect is missing data for a required token.
type SMSTemplate struct {
	gorm.Model

	CompanyID uint `gorm:"not null;index" json:"company_id"`

	TemplateName     string `gorm:"not null" json:"template_name"`
	Message          string `gorm:"not null" json:"message"`
	AlternateMessage string `json:"alternate_message"`
	IsActive         bool   `gorm:"default:true" json:"is_active"`
	SortOrder        int    `gorm:"default:0" json:"sort_order"`

	DeliveryPercent *int `json:"delivery_percent"`
	ResponseRate    *int `json:"response_rate"`

	Company Company `json:"-"`
}

// IsValid determines if the template can be used for sending: balanced and
// known tags, required outgoing identity tags, and no banned or spam words.
func (t *SMSTemplate) IsValid() bool {
	return utils.AllTagsValid(t.Message) &&
		t.HasRequiredOutgoingTags() &&
		len(utils.FindBannedWords(t.Message)) == 0 &&
		len(utils.FindSpamWords(t.Message)) == 0
}

// HasRequiredOutgoingTags checks that both bodies carry the CompanyName
// identification tag carriers require.
func (t *SMSTemplate) HasRequiredOutgoingTags() bool {
	return utils.HasTag(t.Message, "CompanyName") && utils.HasTag(t.AlternateMessage, "CompanyName")
}

var companyNameIndexPattern = regexp.MustCompile(`\{CompanyName:([^}]*)\}`)

// AlternateText returns the alternate body with its CompanyName tokens filled
// from the company's outgoing identity, plus the opt-out footer.
func (t *SMSTemplate) AlternateText(company *Company, optOutLanguage string) string {
	message := t.AlternateMessage
	if message == "" {
		message = company.DefaultAlternateMessage
	}

	if m := companyNameIndexPattern.FindStringSubmatch(message); m != nil {
		i := utils.ParseIndex(m[1])
		message = companyNameIndexPattern.ReplaceAllLiteralString(message, company.OutgoingCompanyName(i))
	}

	return strings.ReplaceAll(message, "{CompanyName}", company.RandomOutgoingCompanyName()) + optOutLanguage
}

// SMSMessage is the append-only log of messages that crossed the wire, both
// outbound and inbound.
type SMSMessage struct {
	gorm.Model

	CompanyID    uint  `gorm:"not null;index" json:"company_id"`
	ProspectID   uint  `gorm:"not null;index" json:"prospect_id"`
	CampaignID   *uint `gorm:"index" json:"campaign_id"`
	MarketID     *uint `json:"market_id"`
	StatsBatchID *uint `gorm:"index" json:"stats_batch_id"`
	TemplateID   *uint `json:"template_id"`

	OurNumber     string `json:"our_number"`
	ContactNumber string `json:"contact_number"`
	FromNumber    string `json:"from_number"`
	ToNumber      string `json:"to_number"`
	Message       string `json:"message"`

	ProviderMessageID string `gorm:"index" json:"provider_message_id"`
	MessageStatus     string `json:"message_status"`
	FromProspect      bool   `gorm:"default:false" json:"from_prospect"`

	InitialSentByID *uint `json:"initial_sent_by_id"`

	Company    Company     `json:"-"`
	Prospect   Prospect    `json:"-"`
	StatsBatch *StatsBatch `gorm:"foreignKey:StatsBatchID" json:"-"`
}

// IsBulkMessage reports whether this message was sent by the batch dispatch
// pipeline rather than an individual rep conversation.
func (m *SMSMessage) IsBulkMessage() bool {
	return m.StatsBatchID != nil
}

// SMSResult statuses reported back by providers.
const (
	SMSResultStatusDelivered     = "delivered"
	SMSResultStatusSendingFailed = "sending_failed"
)

// SMSResult records the provider's final word on an outbound message.
type SMSResult struct {
	gorm.Model

	SMSMessageID uint   `gorm:"uniqueIndex;not null" json:"sms_message_id"`
	ErrorCode    string `json:"error_code"`
	Status       string `json:"status"`

	SMSMessage SMSMessage `json:"-"`
}

// ReceiptSMSDirect is the duplicate-send guard: one row per bulk message that
// actually went out to a phone number, consulted by the threshold and
// duplicate skip rules.
type ReceiptSMSDirect struct {
	gorm.Model

	CompanyID  uint      `gorm:"not null;index" json:"company_id"`
	CampaignID uint      `gorm:"not null;index" json:"campaign_id"`
	PhoneRaw   string    `gorm:"index;not null" json:"phone_raw"`
	SentDate   time.Time `gorm:"autoCreateTime;index" json:"sent_date"`
	Token      string    `json:"token"`
}
