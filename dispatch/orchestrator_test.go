package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/provider"
)

func newTestOrchestrator(db *gorm.DB, gw *provider.SandboxGateway) *Orchestrator {
	return NewOrchestrator(db, provider.NewRegistry(gw), 5*time.Second, testLogger())
}

func TestAttemptBatchTextSendsAndCounts(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	o := newTestOrchestrator(db, gw)

	err := o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false)
	require.NoError(t, err)

	require.Len(t, gw.Sent(), 1)
	assert.Equal(t, "+13035550100", gw.Sent()[0].From)
	assert.Equal(t, "+17205550123", gw.Sent()[0].To)
	assert.Contains(t, gw.Sent()[0].Body, "Jordan")

	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.True(t, cp.Sent)
	assert.False(t, cp.Skipped)
	assert.Equal(t, models.SMSStatusSent, cp.SMSStatus)
	require.NotNil(t, cp.StatsBatchID)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 1, stats.TotalSMSSentCount)
	assert.Equal(t, 1, stats.TotalIntialSMSSentTodayCount)

	var market models.Market
	require.NoError(t, db.First(&market, f.Market.ID).Error)
	assert.Equal(t, 1, market.TotalInitialSMSSentTodayCount)

	var batch models.StatsBatch
	require.NoError(t, db.First(&batch, *cp.StatsBatchID).Error)
	assert.Equal(t, 1, batch.BatchNumber)
	assert.Equal(t, 1, batch.SendAttempt)
	assert.Equal(t, 1, batch.Sent)
	assert.NotNil(t, batch.FirstSendUTC)

	var message models.SMSMessage
	require.NoError(t, db.Where("prospect_id = ?", f.Prospect.ID).First(&message).Error)
	assert.NotEmpty(t, message.ProviderMessageID)
	assert.True(t, message.IsBulkMessage())

	var receipts int64
	require.NoError(t, db.Model(&models.ReceiptSMSDirect{}).
		Where("campaign_id = ?", f.Campaign.ID).Count(&receipts).Error)
	assert.Equal(t, int64(1), receipts)

	var phone models.PhoneNumber
	require.NoError(t, db.First(&phone, f.Phone.ID).Error)
	assert.Equal(t, 1, phone.TotalSent)
	assert.Equal(t, 1, phone.TotalSentToday)
}

func TestAttemptBatchTextSkippedProspectNeverReachesGateway(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	require.NoError(t, db.Model(&f.Prospect).UpdateColumn("do_not_call", true).Error)
	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	o := newTestOrchestrator(db, gw)

	require.NoError(t, o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false))

	assert.Empty(t, gw.Sent())

	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.True(t, cp.Skipped)
	assert.Equal(t, models.SkipReasonCompanyDNC, cp.SkipReason)

	// No receipt and no message row for a skipped prospect.
	var receipts, messages int64
	require.NoError(t, db.Model(&models.ReceiptSMSDirect{}).Count(&receipts).Error)
	require.NoError(t, db.Model(&models.SMSMessage{}).Count(&messages).Error)
	assert.Zero(t, receipts)
	assert.Zero(t, messages)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 1, stats.TotalSkipped)
}

func TestAttemptBatchTextTerminalStateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	o := newTestOrchestrator(db, gw)

	require.NoError(t, o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false))
	// Redelivered job: the row is already sent, nothing changes.
	require.NoError(t, o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false))

	assert.Len(t, gw.Sent(), 1)
	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 1, stats.TotalSMSSentCount)
}

func TestAttemptBatchTextNoNumberAvailable(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	require.NoError(t, db.Model(&f.Phone).UpdateColumn("status", models.PhoneStatusReleased).Error)
	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	o := newTestOrchestrator(db, gw)

	require.NoError(t, o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false))

	assert.Empty(t, gw.Sent())
	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.Equal(t, models.SMSStatusNoNumber, cp.SMSStatus)
	assert.False(t, cp.Sent)
	assert.False(t, cp.Skipped)
}

func TestAttemptBatchTextProspectWithoutCompanyIsTerminal(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	require.NoError(t, db.Model(&f.Prospect).UpdateColumn("company_id", f.Company.ID+999).Error)
	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	o := newTestOrchestrator(db, gw)

	require.NoError(t, o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false))

	assert.Empty(t, gw.Sent())
	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.Equal(t, models.SMSStatusNoCompany, cp.SMSStatus)
	assert.False(t, cp.Sent)

	var batches int64
	require.NoError(t, db.Model(&models.StatsBatch{}).
		Where("campaign_id = ?", f.Campaign.ID).Count(&batches).Error)
	assert.Equal(t, int64(0), batches)
}

func TestAttemptBatchTextStopErrorRecordsOptOutWithoutSent(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	gw.FailWith = &provider.SendError{
		Provider: models.ProviderTelnyx,
		Code:     provider.ErrCodeStopRule,
		Detail:   "Stop rule triggered",
	}
	o := newTestOrchestrator(db, gw)

	require.NoError(t, o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false))

	var p models.Prospect
	require.NoError(t, db.First(&p, f.Prospect.ID).Error)
	assert.True(t, p.OptedOut)

	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.False(t, cp.Sent)

	var result models.SMSResult
	require.NoError(t, db.First(&result).Error)
	assert.Equal(t, provider.ErrCodeStopRule, result.ErrorCode)
	assert.Equal(t, models.SMSResultStatusSendingFailed, result.Status)

	var phone models.PhoneNumber
	require.NoError(t, db.First(&phone, f.Phone.ID).Error)
	assert.Equal(t, 1, phone.TotalOptOuts)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Zero(t, stats.TotalSMSSentCount)
}

func TestAttemptBatchTextCarrierRejectBecomesSkip(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	require.NoError(t, db.Model(&f.Phone).UpdateColumn("provider", models.ProviderTwilio).Error)
	gw := provider.NewSandboxGateway(models.ProviderTwilio)
	gw.FailWith = &provider.SendError{
		Provider: models.ProviderTwilio,
		Code:     provider.ErrCodeCarrierRejected,
		Detail:   "Carrier violation",
	}
	o := newTestOrchestrator(db, gw)

	require.NoError(t, o.AttemptBatchText(context.Background(), f.CP.ID, f.Template.ID, 0, false))

	var cp models.CampaignProspect
	require.NoError(t, db.First(&cp, f.CP.ID).Error)
	assert.True(t, cp.Skipped)
	assert.Equal(t, models.SkipReasonCarrier, cp.SkipReason)

	// Skipped via carrier reject: no failure result row is written.
	var results int64
	require.NoError(t, db.Model(&models.SMSResult{}).Count(&results).Error)
	assert.Zero(t, results)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 1, stats.TotalSkipped)
}

func TestUpdateStatsBatchRollsAtCap(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)
	f.load(t, db)
	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	o := newTestOrchestrator(db, gw)

	var last *models.StatsBatch
	for i := 0; i < models.StatsBatchCap; i++ {
		b, err := o.UpdateStatsBatch(&f.Campaign)
		require.NoError(t, err)
		last = b
		assert.Equal(t, 1, b.BatchNumber)
	}
	assert.Equal(t, models.StatsBatchCap, last.SendAttempt)

	// Attempt 101 rolls a second batch.
	b, err := o.UpdateStatsBatch(&f.Campaign)
	require.NoError(t, err)
	assert.Equal(t, 2, b.BatchNumber)
	assert.Equal(t, 1, b.SendAttempt)

	var open int64
	require.NoError(t, db.Model(&models.StatsBatch{}).
		Where("campaign_id = ? AND send_attempt < ?", f.Campaign.ID, models.StatsBatchCap).
		Count(&open).Error)
	assert.Equal(t, int64(1), open)
}

func TestConcurrentSendsCountBothMessages(t *testing.T) {
	db := newTestDB(t)
	f := newFixture(t, db)

	second := models.Prospect{
		CompanyID:       f.Company.ID,
		FirstName:       "Riley",
		LastName:        "Nakamura",
		PhoneRaw:        "7205550188",
		PhoneType:       "mobile",
		PropertyAddress: "44 Oak St",
		PropertyCity:    "Denver",
		PropertyState:   "CO",
		PropertyZip:     "80014",
	}
	require.NoError(t, db.Create(&second).Error)
	secondCP := models.CampaignProspect{
		CampaignID: f.Campaign.ID,
		ProspectID: second.ID,
		SortOrder:  2,
	}
	require.NoError(t, db.Create(&secondCP).Error)

	gw := provider.NewSandboxGateway(models.ProviderTelnyx)
	o := newTestOrchestrator(db, gw)

	ids := []uint{f.CP.ID, secondCP.ID}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			errs[i] = o.AttemptBatchText(context.Background(), id, f.Template.ID, 0, false)
		}(i, id)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, gw.Sent(), 2)

	var stats models.CampaignStats
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&stats).Error)
	assert.Equal(t, 2, stats.TotalSMSSentCount)
	assert.Equal(t, 2, stats.TotalIntialSMSSentTodayCount)

	var batch models.StatsBatch
	require.NoError(t, db.Where("campaign_id = ?", f.Campaign.ID).First(&batch).Error)
	assert.Equal(t, 2, batch.SendAttempt)
	assert.Equal(t, 2, batch.Sent)
}
