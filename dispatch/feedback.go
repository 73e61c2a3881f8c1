package dispatch

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"leadpilot/metrics"
	"leadpilot/models"
	"leadpilot/provider"
	"leadpilot/utils"
)

// Spam cooldown thresholds: once a batch has this many provider results and
// this many of them are spam-filtered, the market pauses for the cooldown.
const (
	spamVerifyMinResults = 65
	spamVerifyMinSpam    = 40
	spamCooldownPeriod   = 2 * time.Hour
)

// Feedback processes what comes back after a send: provider status
// callbacks and inbound prospect replies.
type Feedback struct {
	DB       *gorm.DB
	Recorder *StatsRecorder
	Log      *logrus.Logger
}

func NewFeedback(db *gorm.DB, log *logrus.Logger) *Feedback {
	return &Feedback{DB: db, Recorder: NewStatsRecorder(db), Log: log}
}

// ProcessStatusCallback applies a provider's delivery status report to the
// message it belongs to. Unknown message ids are dropped silently; providers
// occasionally report on traffic that never originated here.
func (f *Feedback) ProcessStatusCallback(providerMessageID, messageStatus, errorCode string) error {
	var message models.SMSMessage
	err := f.DB.Where("provider_message_id = ?", providerMessageID).First(&message).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	var result models.SMSResult
	err = f.DB.Where("sms_message_id = ?", message.ID).First(&result).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		result = models.SMSResult{
			SMSMessageID: message.ID,
			ErrorCode:    errorCode,
			Status:       messageStatus,
		}
		if err := f.DB.Create(&result).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		err = f.DB.Model(&models.SMSResult{}).Where("id = ?", result.ID).
			UpdateColumn("status", messageStatus).Error
		if err != nil {
			return err
		}
	}

	if messageStatus == models.SMSResultStatusDelivered {
		err = f.DB.Model(&models.SMSMessage{}).Where("id = ?", message.ID).
			UpdateColumn("message_status", models.SMSResultStatusDelivered).Error
		if err != nil {
			return err
		}
		if err := f.Recorder.RecordDelivered(&message); err != nil {
			return err
		}
		metrics.MessagesDelivered.Inc()
	}

	if message.IsBulkMessage() && message.CampaignID != nil {
		err = f.DB.Model(&models.CampaignProspect{}).
			Where("campaign_id = ? AND prospect_id = ?", *message.CampaignID, message.ProspectID).
			Updates(map[string]interface{}{
				"last_message_status": messageStatus,
				"last_message_error":  errorCode,
			}).Error
		if err != nil {
			return err
		}
	}

	if errorCode == provider.ErrCodeSpamFiltered && message.StatsBatchID != nil {
		return f.VerifySpamCounts(*message.StatsBatchID)
	}
	return nil
}

// VerifySpamCounts checks whether a batch's provider results are spam-heavy
// enough to pause its market.
func (f *Feedback) VerifySpamCounts(statsBatchID uint) error {
	var total int64
	err := f.DB.Model(&models.SMSResult{}).
		Joins("JOIN sms_messages ON sms_messages.id = sms_results.sms_message_id").
		Where("sms_messages.stats_batch_id = ?", statsBatchID).
		Count(&total).Error
	if err != nil {
		return err
	}
	if total < spamVerifyMinResults {
		return nil
	}

	var spam int64
	err = f.DB.Model(&models.SMSResult{}).
		Joins("JOIN sms_messages ON sms_messages.id = sms_results.sms_message_id").
		Where("sms_messages.stats_batch_id = ? AND sms_results.error_code = ?",
			statsBatchID, provider.ErrCodeSpamFiltered).
		Count(&spam).Error
	if err != nil {
		return err
	}
	if spam < spamVerifyMinSpam {
		return nil
	}

	var batch models.StatsBatch
	if err := f.DB.First(&batch, statsBatchID).Error; err != nil {
		return err
	}
	cooldownEnd := time.Now().UTC().Add(spamCooldownPeriod)
	err = f.DB.Model(&models.Market{}).Where("id = ?", batch.MarketID).
		UpdateColumn("current_spam_cooldown_period_end", cooldownEnd).Error
	if err != nil {
		return err
	}
	metrics.SpamCooldowns.Inc()
	f.Log.WithFields(logrus.Fields{
		"market_id":      batch.MarketID,
		"stats_batch_id": statsBatchID,
		"cooldown_end":   cooldownEnd,
	}).Warn("market paused by spam cooldown")
	return nil
}

// ProcessInboundMessage handles a reply from a prospect: response flags,
// wrong-number and auto-dead detection, STOP opt-outs and received counters.
func (f *Feedback) ProcessInboundMessage(fromNumber, toNumber, body string) error {
	fromClean := utils.CleanPhone(fromNumber)
	if fromClean == "" {
		return nil
	}
	toClean := utils.CleanPhone(toNumber)

	phone, err := f.findPhoneRecord(toClean)
	if err != nil || phone == nil {
		return err
	}

	var prospect models.Prospect
	err = f.DB.Preload("Company").
		Where("company_id = ? AND phone_raw = ?", phone.CompanyID, fromClean).
		Order("id DESC").
		First(&prospect).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	company := &prospect.Company

	var cps []models.CampaignProspect
	if err := f.DB.Where("prospect_id = ?", prospect.ID).Find(&cps).Error; err != nil {
		return err
	}
	if len(cps) == 0 {
		return nil
	}

	if utils.ContainsWrongNumberPhrase(body) {
		err = f.DB.Model(&models.Prospect{}).Where("id = ?", prospect.ID).
			UpdateColumn("wrong_number", true).Error
		if err != nil {
			return err
		}
	}

	if body == "" {
		body = "no_text"
	}

	// Auto-dead only applies to the first reply a prospect ever sends.
	checkAutoDead := !prospect.HasRespondedViaSMS &&
		(company.AutoDeadEnabled == nil || *company.AutoDeadEnabled)
	setAutoDead := checkAutoDead && utils.ContainsAutoDeadWord(body)
	stopCalled := strings.EqualFold(strings.TrimSpace(body), "stop") && company.AutoFilterMessages
	dead := setAutoDead || stopCalled

	ourNumber := "+1" + toClean
	contactNumber := "+1" + fromClean
	inbound := models.SMSMessage{
		CompanyID:     company.ID,
		ProspectID:    prospect.ID,
		OurNumber:     ourNumber,
		ContactNumber: contactNumber,
		FromNumber:    contactNumber,
		ToNumber:      ourNumber,
		Message:       body,
		FromProspect:  true,
	}
	if err := f.DB.Create(&inbound).Error; err != nil {
		return err
	}

	now := time.Now().UTC()
	prospectUpdates := map[string]interface{}{
		"has_responded_via_sms": true,
		"last_sms_received_utc": now,
	}
	if dead {
		prospectUpdates["do_not_call"] = true
	} else {
		prospectUpdates["has_unread_sms"] = true
	}
	err = f.DB.Model(&models.Prospect{}).Where("id = ?", prospect.ID).
		Updates(prospectUpdates).Error
	if err != nil {
		return err
	}

	counted := map[uint]bool{}
	for i := range cps {
		cp := &cps[i]
		cpUpdates := map[string]interface{}{"has_responded_via_sms": true}
		if !dead {
			cpUpdates["has_unread_sms"] = true
		}
		err = f.DB.Model(&models.CampaignProspect{}).Where("id = ?", cp.ID).
			Updates(cpUpdates).Error
		if err != nil {
			return err
		}

		if !counted[cp.CampaignID] {
			if err := f.Recorder.RecordReceived(cp.CampaignID, cp.StatsBatchID, dead); err != nil {
				return err
			}
			counted[cp.CampaignID] = true
		}
	}

	phoneUpdates := map[string]interface{}{"last_received_utc": now}
	if dead {
		phoneUpdates["total_auto_dead"] = gorm.Expr("total_auto_dead + ?", 1)
	}
	err = f.DB.Model(&models.PhoneNumber{}).Where("id = ?", phone.ID).
		Updates(phoneUpdates).Error
	if err != nil {
		return err
	}
	metrics.MessagesReceived.Inc()

	if stopCalled {
		return recordOptOuts(f.DB, fromClean, toClean)
	}
	return nil
}

// findPhoneRecord resolves an inbound destination number to the pooled
// record, preferring the active one when the number was recycled.
func (f *Feedback) findPhoneRecord(phone string) (*models.PhoneNumber, error) {
	var record models.PhoneNumber
	err := f.DB.Where("phone = ? AND status = ?", phone, models.PhoneStatusActive).
		Order("id DESC").
		First(&record).Error
	if err == gorm.ErrRecordNotFound {
		err = f.DB.Where("phone = ?", phone).Order("id DESC").First(&record).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func recordOptOuts(db *gorm.DB, prospectPhone, pooledPhone string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.PhoneNumber{}).
			Where("phone = ? AND status = ?", pooledPhone, models.PhoneStatusActive).
			UpdateColumn("total_opt_outs", gorm.Expr("total_opt_outs + ?", 1)).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.Prospect{}).
			Where("phone_raw = ?", prospectPhone).
			UpdateColumn("opted_out", true).Error
	})
}
