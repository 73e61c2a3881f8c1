package dispatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadpilot/metrics"
	"leadpilot/models"
	"leadpilot/provider"
)

// Orchestrator runs one full dispatch attempt for a campaign prospect: batch
// binding, skip rules, rendering, number assignment and the provider send.
type Orchestrator struct {
	DB        *gorm.DB
	Skip      *SkipPolicy
	Assigner  *PhoneAssigner
	Renderer  *MessageRenderer
	Recorder  *StatsRecorder
	Providers *provider.Registry

	// SendTimeout bounds the provider API call per message.
	SendTimeout time.Duration

	Log *logrus.Logger
}

func NewOrchestrator(db *gorm.DB, providers *provider.Registry, sendTimeout time.Duration, log *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		DB:          db,
		Skip:        NewSkipPolicy(db),
		Assigner:    NewPhoneAssigner(db),
		Renderer:    &MessageRenderer{},
		Recorder:    NewStatsRecorder(db),
		Providers:   providers,
		SendTimeout: sendTimeout,
		Log:         log,
	}
}

// AttemptBatchText attempts to send a bulk message to one campaign prospect.
// The attempt can end in a send, a skip, or a terminal cannot-send state; all
// three are normal completions. An error return means the attempt could not
// be carried out and should be retried.
func (o *Orchestrator) AttemptBatchText(ctx context.Context, campaignProspectID, templateID, sentByUserID uint, forceSkip bool) error {
	var cp models.CampaignProspect
	err := o.DB.Preload("Campaign.Market").Preload("Prospect.Company").
		First(&cp, campaignProspectID).Error
	if err != nil {
		return err
	}
	if !cp.Pending() {
		return nil
	}

	campaign := &cp.Campaign
	prospect := &cp.Prospect
	company := &prospect.Company

	// A prospect detached from its company cannot be messaged; terminal, not
	// retried.
	if company.ID == 0 {
		return o.DB.Model(&models.CampaignProspect{}).Where("id = ?", cp.ID).
			UpdateColumn("sms_status", models.SMSStatusNoCompany).Error
	}

	batch, err := o.UpdateStatsBatch(campaign)
	if err != nil {
		return err
	}
	cp.StatsBatchID = &batch.ID
	cp.SMSTemplateID = &templateID
	err = o.DB.Model(&models.CampaignProspect{}).Where("id = ?", cp.ID).
		Updates(map[string]interface{}{
			"stats_batch_id":  batch.ID,
			"sms_template_id": templateID,
		}).Error
	if err != nil {
		return err
	}

	var template models.SMSTemplate
	if err := o.DB.First(&template, templateID).Error; err != nil {
		return err
	}

	senderName := o.senderName(company, sentByUserID)
	body := o.Renderer.Render(RenderInput{
		Template:   &template,
		Prospect:   prospect,
		Campaign:   campaign,
		Company:    company,
		SenderName: senderName,
	})

	outcome, err := o.Skip.Evaluate(&cp, prospect, campaign, company, batch, forceSkip)
	if err != nil {
		return err
	}
	if outcome.Skip {
		metrics.MessagesSkipped.WithLabelValues(string(outcome.Reason)).Inc()
		return o.Recorder.RecordSkip(campaign.ID)
	}

	// The receipt goes in before the send; it is the duplicate-send guard for
	// every later attempt against this number.
	receipt := models.ReceiptSMSDirect{
		CompanyID:  company.ID,
		CampaignID: campaign.ID,
		PhoneRaw:   prospect.PhoneRaw,
	}
	if err := o.DB.Create(&receipt).Error; err != nil {
		return err
	}

	phone, err := o.Assigner.Assign(prospect, campaign)
	if err != nil {
		return err
	}
	if phone == nil || body == "" {
		cp.SMSStatus = models.SMSStatusNoNumber
		return o.DB.Model(&models.CampaignProspect{}).Where("id = ?", cp.ID).
			UpdateColumn("sms_status", models.SMSStatusNoNumber).Error
	}

	ourNumber := phone.FullNumber()
	contactNumber := prospect.FullNumber()
	message := models.SMSMessage{
		CompanyID:       company.ID,
		ProspectID:      prospect.ID,
		CampaignID:      &campaign.ID,
		MarketID:        &campaign.MarketID,
		StatsBatchID:    &batch.ID,
		TemplateID:      &templateID,
		OurNumber:       ourNumber,
		ContactNumber:   contactNumber,
		FromNumber:      ourNumber,
		ToNumber:        contactNumber,
		Message:         body,
		InitialSentByID: &sentByUserID,
	}
	if err := o.DB.Create(&message).Error; err != nil {
		return err
	}

	gateway, err := o.Providers.ForNumber(phone)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.SendTimeout)
	defer cancel()
	result, sendErr := gateway.Send(sendCtx, ourNumber, contactNumber, body)

	if sendErr != nil {
		se, ok := provider.AsSendError(sendErr)
		if !ok {
			// Transport-level failure, delivery state unknown. Leave the row
			// pending so the job can be retried.
			return sendErr
		}
		metrics.ProviderErrors.WithLabelValues(string(se.Provider), se.Code).Inc()
		o.Log.WithFields(logrus.Fields{
			"campaign_prospect_id": cp.ID,
			"provider":             se.Provider,
			"code":                 se.Code,
		}).Warn("provider rejected bulk message")

		if se.IsOptOut() {
			if err := o.RecordPhoneNumberOptOuts(prospect.PhoneRaw, phone.Phone); err != nil {
				return err
			}
		}
		if se.IsCarrierRejected() {
			_, err := o.Skip.skip(&cp, nil, models.SkipReasonCarrier, func(tx *gorm.DB) error {
				return incrementCampaignStat(tx, campaign.ID, "total_skipped")
			})
			if err != nil {
				return err
			}
			metrics.MessagesSkipped.WithLabelValues(string(models.SkipReasonCarrier)).Inc()
		}

		if !cp.Skipped {
			failure := models.SMSResult{
				SMSMessageID: message.ID,
				ErrorCode:    se.Code,
				Status:       models.SMSResultStatusSendingFailed,
			}
			return o.DB.Create(&failure).Error
		}
		return nil
	}

	err = o.DB.Model(&models.SMSMessage{}).Where("id = ?", message.ID).
		Updates(map[string]interface{}{
			"provider_message_id": result.MessageID,
			"message_status":      result.Status,
		}).Error
	if err != nil {
		return err
	}

	metrics.MessagesSent.WithLabelValues(string(phone.Provider)).Inc()
	return o.Recorder.RecordSent(&cp, prospect, phone, campaign, batch)
}

// UpdateStatsBatch returns the campaign's open stats batch, rolling a new one
// when the current batch is full, and counts this attempt against it. The
// campaign row is locked so concurrent attempts never roll two batches.
func (o *Orchestrator) UpdateStatsBatch(campaign *models.Campaign) (*models.StatsBatch, error) {
	var batch models.StatsBatch
	err := o.DB.Transaction(func(tx *gorm.DB) error {
		var locked models.Campaign
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, campaign.ID).Error
		if err != nil {
			return err
		}

		err = tx.Where("campaign_id = ?", campaign.ID).
			Order("batch_number DESC").
			First(&batch).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			batch = models.StatsBatch{
				CampaignID:  campaign.ID,
				MarketID:    campaign.MarketID,
				Provider:    campaign.Market.PhoneProvider,
				BatchNumber: 1,
			}
			if err := tx.Create(&batch).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if batch.Full() {
				batch = models.StatsBatch{
					CampaignID:  campaign.ID,
					MarketID:    campaign.MarketID,
					Provider:    campaign.Market.PhoneProvider,
					BatchNumber: batch.BatchNumber + 1,
				}
				if err := tx.Create(&batch).Error; err != nil {
					return err
				}
			}
		}

		now := time.Now().UTC()
		err = tx.Model(&models.StatsBatch{}).Where("id = ?", batch.ID).
			Updates(map[string]interface{}{
				"send_attempt":  gorm.Expr("send_attempt + ?", 1),
				"last_send_utc": now,
			}).Error
		if err != nil {
			return err
		}
		batch.SendAttempt++
		batch.LastSendUTC = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// RecordPhoneNumberOptOuts marks every prospect sharing the phone number as
// opted out, permanently, and tallies the opt-out on the pooled number that
// received it.
func (o *Orchestrator) RecordPhoneNumberOptOuts(prospectPhone, pooledPhone string) error {
	return recordOptOuts(o.DB, prospectPhone, pooledPhone)
}

func (o *Orchestrator) senderName(company *models.Company, sentByUserID uint) string {
	if company.UseSenderName && sentByUserID != 0 {
		var user models.User
		if err := o.DB.First(&user, sentByUserID).Error; err == nil {
			return user.FirstName
		}
	}
	if len(company.OutgoingUserNames) > 0 {
		return company.OutgoingUserNames[0]
	}
	return ""
}
