package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessagingAllowedAt(t *testing.T) {
	c := Company{Timezone: "UTC", MessagingStartHour: 8, MessagingEndHour: 21}

	morning := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	night := time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC)
	assert.True(t, c.MessagingAllowedAt(morning))
	assert.False(t, c.MessagingAllowedAt(night))
	assert.False(t, c.MessagingAllowedAt(time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)))
}

func TestMessagingAllowedAtRespectsTimezone(t *testing.T) {
	c := Company{Timezone: "America/Denver", MessagingStartHour: 8, MessagingEndHour: 21}

	// 14:00 UTC in June is 08:00 in Denver.
	assert.True(t, c.MessagingAllowedAt(time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)))
	assert.False(t, c.MessagingAllowedAt(time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)))
}

func TestOutgoingCompanyNameClampsIndex(t *testing.T) {
	c := Company{OutgoingCompanyNames: StringSlice{"First", "Second"}}
	assert.Equal(t, "First", c.OutgoingCompanyName(0))
	assert.Equal(t, "Second", c.OutgoingCompanyName(1))
	assert.Equal(t, "First", c.OutgoingCompanyName(5))
	assert.Equal(t, "First", c.OutgoingCompanyName(-1))

	empty := Company{}
	assert.Equal(t, "", empty.OutgoingCompanyName(0))
	assert.Equal(t, "", empty.RandomOutgoingCompanyName())
}

func TestProspectIsVerizon(t *testing.T) {
	assert.True(t, (&Prospect{PhoneCarrier: "Verizon Wireless"}).IsVerizon())
	assert.True(t, (&Prospect{PhoneCarrier: "verizon"}).IsVerizon())
	assert.False(t, (&Prospect{PhoneCarrier: "T-Mobile USA"}).IsVerizon())
	assert.False(t, (&Prospect{}).IsVerizon())
}

func TestMarketInSpamCooldown(t *testing.T) {
	m := Market{}
	assert.False(t, m.InSpamCooldown(time.Now()))

	end := time.Now().Add(time.Hour)
	m.CurrentSpamCooldownPeriodEnd = &end
	assert.True(t, m.InSpamCooldown(time.Now()))
	assert.False(t, m.InSpamCooldown(end.Add(time.Minute)))
}

func TestStatsBatchFullAndRates(t *testing.T) {
	b := StatsBatch{SendAttempt: StatsBatchCap - 1}
	assert.False(t, b.Full())
	b.SendAttempt = StatsBatchCap
	assert.True(t, b.Full())

	b = StatsBatch{SendAttempt: 100, Delivered: 40, Received: 10, SkippedOptedOut: 20}
	assert.Equal(t, 20, b.TotalSkipped())
	assert.Equal(t, 50, b.DeliveredPercent()) // 40 of 80 non-skipped
	assert.Equal(t, 25, b.ResponseRate())     // 10 of 40 delivered

	empty := StatsBatch{}
	assert.Equal(t, 0, empty.DeliveredPercent())
	assert.Equal(t, 0, empty.ResponseRate())
}

func TestSkipCounterColumn(t *testing.T) {
	assert.Equal(t, "skipped_opted_out", SkipCounterColumn(SkipReasonOptedOut))
	assert.Equal(t, "skipped_internal_dnc", SkipCounterColumn(SkipReasonCompanyDNC))
	assert.Equal(t, "skipped_internal_dnc", SkipCounterColumn(SkipReasonPublicDNC))
	assert.Equal(t, "skipped_verizon", SkipCounterColumn(SkipReasonVerizon))
	// Carrier rejects and receipts have no per-reason batch column.
	assert.Equal(t, "", SkipCounterColumn(SkipReasonCarrier))
	assert.Equal(t, "", SkipCounterColumn(SkipReasonSMSReceipt))
}

func TestCampaignProspectTransfer(t *testing.T) {
	cp := CampaignProspect{
		CampaignID:         1,
		Sent:               true,
		Skipped:            true,
		SkipReason:         SkipReasonOptedOut,
		SMSStatus:          SMSStatusSent,
		HasRespondedViaSMS: true,
	}
	next := Campaign{}
	next.ID = 2

	cp.Transfer(&next, false)
	assert.Equal(t, uint(2), cp.CampaignID)
	assert.False(t, cp.Sent)
	assert.True(t, cp.IsFollowupCP)
	assert.True(t, cp.Skipped) // kept without reset
	assert.False(t, cp.HasRespondedViaSMS)

	cp.Transfer(&next, true)
	assert.False(t, cp.Skipped)
	assert.Equal(t, SkipReason(""), cp.SkipReason)
	assert.True(t, cp.Pending())
}

func TestTemplateValidation(t *testing.T) {
	valid := SMSTemplate{
		Message:          "Hi {FirstName}, call {CompanyName}",
		AlternateMessage: "Hi, call {CompanyName}",
	}
	assert.True(t, valid.IsValid())

	missingIdentity := SMSTemplate{
		Message:          "Hi {FirstName}",
		AlternateMessage: "Hi there",
	}
	assert.False(t, missingIdentity.IsValid())

	banned := SMSTemplate{
		Message:          "We pay cash, {CompanyName}",
		AlternateMessage: "{CompanyName}",
	}
	assert.False(t, banned.IsValid())

	unknownTag := SMSTemplate{
		Message:          "Hi {Nope} {CompanyName}",
		AlternateMessage: "{CompanyName}",
	}
	assert.False(t, unknownTag.IsValid())
}

func TestAlternateText(t *testing.T) {
	company := Company{
		OutgoingCompanyNames:    StringSlice{"First", "Second"},
		DefaultAlternateMessage: "We buy houses.",
	}

	tpl := SMSTemplate{AlternateMessage: "Call us at {CompanyName:1}."}
	assert.Equal(t, "Call us at Second. footer", tpl.AlternateText(&company, " footer"))

	// Empty alternate falls back to the company default.
	tpl = SMSTemplate{}
	assert.Equal(t, "We buy houses.", tpl.AlternateText(&company, ""))
}
