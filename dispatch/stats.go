package dispatch

import (
	"time"

	"gorm.io/gorm"

	"leadpilot/models"
)

// StatsRecorder owns the aggregate counters a dispatch attempt touches. Every
// increment is a single-statement atomic update so concurrent workers never
// lose a count.
type StatsRecorder struct {
	DB *gorm.DB
}

func NewStatsRecorder(db *gorm.DB) *StatsRecorder {
	return &StatsRecorder{DB: db}
}

// RecordSent flips the campaign prospect into the sent terminal state and
// bumps campaign, market, batch, phone number and prospect counters in one
// transaction.
func (r *StatsRecorder) RecordSent(cp *models.CampaignProspect, prospect *models.Prospect, phone *models.PhoneNumber, campaign *models.Campaign, batch *models.StatsBatch) error {
	now := time.Now().UTC()
	return r.DB.Transaction(func(tx *gorm.DB) error {
		cp.Sent = true
		cp.Skipped = false
		cp.SMSStatus = models.SMSStatusSent
		err := tx.Model(&models.CampaignProspect{}).Where("id = ?", cp.ID).
			Updates(map[string]interface{}{
				"sent":                true,
				"skipped":             false,
				"sms_status":          models.SMSStatusSent,
				"last_message_status": "sent",
			}).Error
		if err != nil {
			return err
		}

		for _, column := range []string{"total_sms_sent_count", "total_intial_sms_sent_today_count"} {
			if err := incrementCampaignStat(tx, campaign.ID, column); err != nil {
				return err
			}
		}

		err = tx.Model(&models.Market{}).Where("id = ?", campaign.MarketID).
			UpdateColumn("total_initial_sms_sent_today_count",
				gorm.Expr("total_initial_sms_sent_today_count + ?", 1)).Error
		if err != nil {
			return err
		}

		if batch != nil {
			err = tx.Model(&models.StatsBatch{}).Where("id = ?", batch.ID).
				Updates(map[string]interface{}{
					"sent":          gorm.Expr("sent + ?", 1),
					"last_send_utc": now,
				}).Error
			if err != nil {
				return err
			}
			err = tx.Model(&models.StatsBatch{}).
				Where("id = ? AND first_send_utc IS NULL", batch.ID).
				UpdateColumn("first_send_utc", now).Error
			if err != nil {
				return err
			}
		}

		err = tx.Model(&models.PhoneNumber{}).Where("id = ?", phone.ID).
			Updates(map[string]interface{}{
				"total_sent":       gorm.Expr("total_sent + ?", 1),
				"total_sent_today": gorm.Expr("total_sent_today + ?", 1),
				"last_send_utc":    now,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Prospect{}).Where("id = ?", prospect.ID).
			UpdateColumn("last_sms_sent_utc", now).Error
	})
}

// RecordSkip bumps the campaign-level skip aggregates. The per-reason batch
// tally is written by the skip policy together with the decision itself.
func (r *StatsRecorder) RecordSkip(campaignID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for _, column := range []string{"total_skipped", "total_initial_sent_skipped"} {
			if err := incrementCampaignStat(tx, campaignID, column); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordDelivered credits a provider delivery confirmation to the message's
// campaign and batch.
func (r *StatsRecorder) RecordDelivered(message *models.SMSMessage) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if message.CampaignID != nil {
			if err := incrementCampaignStat(tx, *message.CampaignID, "has_delivered_sms_only_count"); err != nil {
				return err
			}
		}
		if message.StatsBatchID != nil {
			err := tx.Model(&models.StatsBatch{}).Where("id = ?", *message.StatsBatchID).
				UpdateColumn("delivered", gorm.Expr("delivered + ?", 1)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordReceived credits an inbound reply to the prospect's latest bulk
// message, its campaign and its batch.
func (r *StatsRecorder) RecordReceived(campaignID uint, statsBatchID *uint, autoDead bool) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := incrementCampaignStat(tx, campaignID, "total_sms_received_count"); err != nil {
			return err
		}
		if autoDead {
			if err := incrementCampaignStat(tx, campaignID, "total_auto_dead_count"); err != nil {
				return err
			}
		}
		if statsBatchID != nil {
			column := "received"
			if autoDead {
				column = "received_dead_auto"
			}
			err := tx.Model(&models.StatsBatch{}).Where("id = ?", *statsBatchID).
				UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
