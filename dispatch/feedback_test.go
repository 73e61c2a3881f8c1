package dispatch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/provider"
)

func seedBulkMessage(t *testing.T, db *gorm.DB, f *fixture, batch *models.StatsBatch, providerMessageID string) *models.SMSMessage {
	t.Helper()
	message := &models.SMSMessage{
		CompanyID:         f.Company.ID,
		ProspectID:        f.Prospect.ID,
		CampaignID:        &f.Campaign.ID,
		MarketID:          &f.Market.ID,
		StatsBatchID:      &batch.ID,
		OurNumber:         f.Phone.FullNumber(),
		ContactNumber:     f.Prospect.FullNumber(),
		Message:           "hi",
		ProviderMessageID: providerMessageID,
	}
	require.NoError(t, db.Create(message).Error)
	return message
}

func TestStatusCallbackDelivered(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	batch := f.newBatch(t, db)
	message := seedBulkMessage(t, db, f, batch, "msg-1")
	fb := NewFeedback(db, testLogger())

	require.NoError(t, fb.ProcessStatusCallback("msg-1", models.SMSResultStatusDelivered, ""))

	var result models.SMSResult
	require.NoError(t, db.Where("sms_message_id = ?", message.ID).First(&result).Error)
	assert.Equal(t, models.SMSResultStatusDelivered, result.Status)

	var m models.SMSMessage
	require.NoError(t, db.First(&m, message.ID).Error)
	assert.Equal(t, models.SMSResultStatusDelivered, m.MessageStatus)

	var b models.StatsBatch
	require.NoError(t, db.First(&b, batch.ID).Error)
	assert.Equal(t, 1, b.Delivered)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 1, stats.HasDeliveredSMSOnlyCount)

	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.Equal(t, models.SMSResultStatusDelivered, cp.LastMessageStatus)
}

func TestStatusCallbackUpdatesExistingResult(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	batch := f.newBatch(t, db)
	seedBulkMessage(t, db, f, batch, "msg-1")
	fb := NewFeedback(db, testLogger())

	require.NoError(t, fb.ProcessStatusCallback("msg-1", "sending", ""))
	require.NoError(t, fb.ProcessStatusCallback("msg-1", models.SMSResultStatusDelivered, ""))

	var results int64
	require.NoError(t, db.Model(&models.SMSResult{}).Count(&results).Error)
	assert.Equal(t, int64(1), results)

	var result models.SMSResult
	require.NoError(t, db.First(&result).Error)
	assert.Equal(t, models.SMSResultStatusDelivered, result.Status)
}

func TestStatusCallbackUnknownMessageIgnored(t *testing.T) {
	db := newTestDB(t)
	fb := NewFeedback(db, testLogger())
	require.NoError(t, fb.ProcessStatusCallback("nope", models.SMSResultStatusDelivered, ""))
}

func TestSpamCooldownTriggersAtThresholds(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	batch := f.newBatch(t, db)
	fb := NewFeedback(db, testLogger())

	// 64 results, 40 spam: below the result floor, no cooldown.
	for i := 0; i < 64; i++ {
		m := seedBulkMessage(t, db, f, batch, fmt.Sprintf("msg-%d", i))
		code := ""
		if i < 40 {
			code = provider.ErrCodeSpamFiltered
		}
		require.NoError(t, db.Create(&models.SMSResult{
			SMSMessageID: m.ID,
			ErrorCode:    code,
			Status:       models.SMSResultStatusSendingFailed,
		}).Error)
	}
	require.NoError(t, fb.VerifySpamCounts(batch.ID))

	var market models.Market
	require.NoError(t, db.First(&market, f.Market.ID).Error)
	assert.Nil(t, market.CurrentSpamCooldownPeriodEnd)

	// The 65th result crosses both thresholds.
	m := seedBulkMessage(t, db, f, batch, "msg-64")
	require.NoError(t, db.Create(&models.SMSResult{
		SMSMessageID: m.ID,
		Status:       models.SMSResultStatusSendingFailed,
	}).Error)
	require.NoError(t, fb.VerifySpamCounts(batch.ID))

	require.NoError(t, db.First(&market, f.Market.ID).Error)
	require.NotNil(t, market.CurrentSpamCooldownPeriodEnd)
	assert.True(t, market.InSpamCooldown(time.Now()))
	assert.False(t, market.InSpamCooldown(time.Now().Add(3*time.Hour)))
}

func TestInboundStopOptsOutExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	fb := NewFeedback(db, testLogger())

	require.NoError(t, fb.ProcessInboundMessage(f.Prospect.FullNumber(), f.Phone.FullNumber(), "STOP"))

	var p models.Prospect
	require.NoError(t, db.First(&p, f.Prospect.ID).Error)
	assert.True(t, p.OptedOut)
	assert.True(t, p.DoNotCall)
	assert.True(t, p.HasRespondedViaSMS)

	var phone models.PhoneNumber
	require.NoError(t, db.First(&phone, f.Phone.ID).Error)
	assert.Equal(t, 1, phone.TotalOptOuts)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 1, stats.TotalSMSReceivedCount)
	assert.Equal(t, 1, stats.TotalAutoDeadCount)
}

func TestInboundWrongNumberFlagsProspect(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	fb := NewFeedback(db, testLogger())

	require.NoError(t, fb.ProcessInboundMessage(f.Prospect.FullNumber(), f.Phone.FullNumber(), "You have the wrong number, please"))

	var p models.Prospect
	require.NoError(t, db.First(&p, f.Prospect.ID).Error)
	assert.True(t, p.WrongNumber)
}

func TestInboundReplyMarksResponded(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	fb := NewFeedback(db, testLogger())

	require.NoError(t, fb.ProcessInboundMessage(f.Prospect.FullNumber(), f.Phone.FullNumber(), "Yes I'd like to hear more"))

	var p models.Prospect
	require.NoError(t, db.First(&p, f.Prospect.ID).Error)
	assert.True(t, p.HasRespondedViaSMS)
	assert.True(t, p.HasUnreadSMS)
	assert.False(t, p.DoNotCall)

	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.True(t, cp.HasRespondedViaSMS)
	assert.True(t, cp.HasUnreadSMS)

	var inbound models.SMSMessage
	require.NoError(t, db.Where("from_prospect = ?", true).First(&inbound).Error)
	assert.Equal(t, "Yes I'd like to hear more", inbound.Message)
}

func TestInboundAutoDeadWord(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	fb := NewFeedback(db, testLogger())

	require.NoError(t, fb.ProcessInboundMessage(f.Prospect.FullNumber(), f.Phone.FullNumber(), "not interested, remove me"))

	var p models.Prospect
	require.NoError(t, db.First(&p, f.Prospect.ID).Error)
	assert.True(t, p.DoNotCall)
	assert.False(t, p.OptedOut)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 1, stats.TotalAutoDeadCount)
}

func TestInboundUnknownNumberIgnored(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	fb := NewFeedback(db, testLogger())

	require.NoError(t, fb.ProcessInboundMessage("+19995550000", f.Phone.FullNumber(), "hello"))

	var messages int64
	require.NoError(t, db.Model(&models.SMSMessage{}).Count(&messages).Error)
	assert.Zero(t, messages)
}
