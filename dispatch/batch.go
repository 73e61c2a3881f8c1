package dispatch

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"leadpilot/models"
	"leadpilot/queue"
)

// Preconditions a batch send can fail on before anything is queued.
var (
	ErrNoTemplate            = errors.New("campaign has no sms template")
	ErrInvalidTemplate       = errors.New("sms template failed validation")
	ErrDailyLimitReached     = errors.New("market daily send limit reached")
	ErrOutsideMessagingHours = errors.New("outside the company messaging hours")
	ErrMarketCooldown        = errors.New("market is in spam cooldown")
	ErrSubscriptionInactive  = errors.New("company subscription is not active")
	ErrNothingToSend         = errors.New("campaign has no pending prospects")
)

// BatchSender validates a batch-send request and queues one dispatch job per
// eligible campaign prospect. The heavy lifting happens in the workers; this
// only gates and enumerates.
type BatchSender struct {
	DB    *gorm.DB
	Queue queue.Queue
	Log   *logrus.Logger

	now func() time.Time
}

func NewBatchSender(db *gorm.DB, q queue.Queue, log *logrus.Logger) *BatchSender {
	return &BatchSender{DB: db, Queue: q, Log: log, now: time.Now}
}

// EnqueueBatch queues up to one batch worth of dispatch jobs for the campaign
// and returns how many were queued.
func (s *BatchSender) EnqueueBatch(campaignID, templateID, userID uint) (int, error) {
	var campaign models.Campaign
	err := s.DB.Preload("Market").Preload("Company").First(&campaign, campaignID).Error
	if err != nil {
		return 0, err
	}

	var template models.SMSTemplate
	err = s.DB.First(&template, templateID).Error
	if err == gorm.ErrRecordNotFound {
		return 0, ErrNoTemplate
	}
	if err != nil {
		return 0, err
	}
	if !template.IsValid() {
		return 0, ErrInvalidTemplate
	}

	company := campaign.Company
	if company.SubscriptionStatus != "active" {
		return 0, ErrSubscriptionInactive
	}
	if !company.MessagingAllowedAt(s.now()) {
		return 0, ErrOutsideMessagingHours
	}

	market := campaign.Market
	if market.InSpamCooldown(s.now()) {
		return 0, ErrMarketCooldown
	}
	if market.DailyLimitReached() {
		return 0, ErrDailyLimitReached
	}

	var pending []models.CampaignProspect
	err = s.DB.
		Joins("JOIN prospects ON prospects.id = campaign_prospects.prospect_id").
		Where("campaign_prospects.campaign_id = ?", campaignID).
		Where("campaign_prospects.sent = ? AND campaign_prospects.skipped = ?", false, false).
		Where("prospects.phone_type = ?", "mobile").
		Order("campaign_prospects.sort_order ASC, campaign_prospects.id ASC").
		Limit(models.StatsBatchCap).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, ErrNothingToSend
	}

	queued := 0
	for _, cp := range pending {
		err := s.Queue.Publish(queue.DispatchJob{
			CampaignProspectID: cp.ID,
			SMSTemplateID:      templateID,
			SentByUserID:       userID,
		})
		if err != nil {
			s.Log.WithFields(logrus.Fields{
				"campaign_id":          campaignID,
				"campaign_prospect_id": cp.ID,
				"error":                err,
			}).Error("failed to queue dispatch job")
			return queued, err
		}
		queued++
	}

	s.Log.WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"queued":      queued,
	}).Info("batch send queued")
	return queued, nil
}
