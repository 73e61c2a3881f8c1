package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"leadpilot/models"
)

// ResetWorker zeroes the per-day send counters when the UTC date rolls over.
// The daily limit checks read these columns, so a missed reset blocks the
// next day's sends.
type ResetWorker struct {
	DB  *gorm.DB
	Log *logrus.Logger

	lastReset string
}

func NewResetWorker(db *gorm.DB, log *logrus.Logger) *ResetWorker {
	return &ResetWorker{DB: db, Log: log, lastReset: time.Now().UTC().Format("2006-01-02")}
}

func (w *ResetWorker) Start(ctx context.Context) {
	w.Log.Info("starting daily reset worker")
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Log.Info("stopping daily reset worker")
			return
		case <-ticker.C:
			today := time.Now().UTC().Format("2006-01-02")
			if today == w.lastReset {
				continue
			}
			if err := w.resetDailyCounters(); err != nil {
				w.Log.WithField("error", err).Error("daily counter reset failed")
				continue
			}
			w.lastReset = today
		}
	}
}

func (w *ResetWorker) resetDailyCounters() error {
	return w.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Market{}).Where("total_initial_sms_sent_today_count > 0").
			UpdateColumn("total_initial_sms_sent_today_count", 0).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.CampaignStats{}).Where("total_intial_sms_sent_today_count > 0").
			UpdateColumn("total_intial_sms_sent_today_count", 0).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.PhoneNumber{}).Where("total_sent_today > 0").
			UpdateColumn("total_sent_today", 0).Error
	})
}
