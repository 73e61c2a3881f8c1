package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Prospect is a contact that can appear in many campaigns. Dispatch state for
// one (campaign, prospect) pair lives on CampaignProspect, not here.
type Prospect struct {
	gorm.Model

	CompanyID uint `gorm:"not null;index" json:"company_id"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	PhoneRaw     string `gorm:"index;not null" json:"phone_raw"` // 10 digit, no country code
	PhoneType    string `gorm:"default:'mobile'" json:"phone_type"`
	PhoneCarrier string `json:"phone_carrier"`

	// Compliance flags
	OptedOut    bool `gorm:"default:false" json:"opted_out"`
	DoNotCall   bool `gorm:"default:false;index" json:"do_not_call"`
	WrongNumber bool `gorm:"default:false" json:"wrong_number"`

	// Response tracking
	HasRespondedViaSMS bool       `gorm:"default:false" json:"has_responded_via_sms"`
	HasUnreadSMS       bool       `gorm:"default:false" json:"has_unread_sms"`
	LastSMSSentUTC     *time.Time `json:"last_sms_sent_utc"`
	LastSMSReceivedUTC *time.Time `json:"last_sms_received_utc"`

	// Assigned outbound number, kept across follow-up campaigns when the
	// campaign retains numbers.
	PhoneNumberID *uint `json:"phone_number_id"`

	// Property merge fields used by message templates
	PropertyAddress string `json:"property_address"`
	PropertyCity    string `json:"property_city"`
	PropertyState   string `json:"property_state"`
	PropertyZip     string `json:"property_zip"`
	Custom1         string `json:"custom1"`

	Company     Company      `json:"-"`
	PhoneNumber *PhoneNumber `gorm:"foreignKey:PhoneNumberID" json:"-"`
}

// FullNumber returns the E.164 form used on the wire.
func (p *Prospect) FullNumber() string {
	return fmt.Sprintf("+1%s", p.PhoneRaw)
}

// IsVerizon reports whether the prospect's number rides on the Verizon
// network, which is only deliverable through the Twilio market.
func (p *Prospect) IsVerizon() bool {
	return strings.Contains(strings.ToLower(p.PhoneCarrier), "verizon")
}

// AddressDisplay is the single-line property address used by the
// {PropertyAddressFull} template token.
func (p *Prospect) AddressDisplay() string {
	parts := []string{}
	for _, s := range []string{p.PropertyAddress, p.PropertyCity, p.PropertyState, p.PropertyZip} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// MessageAttrs maps template tokens to this prospect's values. CompanyName
// and UserFirstName draw from the company's configured outgoing identity.
func (p *Prospect) MessageAttrs() map[string]string {
	return map[string]string{
		"FirstName":             p.FirstName,
		"LastName":              p.LastName,
		"StreetAddress":         p.PropertyAddress,
		"PropertyStreetAddress": p.PropertyAddress,
		"PropertyAddressFull":   p.AddressDisplay(),
		"City":                  p.PropertyCity,
		"State":                 p.PropertyState,
		"ZipCode":               p.PropertyZip,
		"Custom1":               p.Custom1,
		"NAME":                  p.FirstName,
		"ADDRESS":               p.PropertyAddress,
		"CompanyName":           p.Company.RandomOutgoingCompanyName(),
		"UserFirstName":         p.Company.RandomOutgoingUserName(),
	}
}

// InternalDNC is a company's private do-not-contact list. A hit marks the
// prospect DNC on the next dispatch pass.
type InternalDNC struct {
	gorm.Model

	CompanyID uint   `gorm:"not null;index" json:"company_id"`
	PhoneRaw  string `gorm:"index;not null" json:"phone_raw"`
}

// LitigatorList is the global registry of known TCPA litigator numbers.
type LitigatorList struct {
	gorm.Model

	Phone string `gorm:"uniqueIndex;not null" json:"phone"`
}
