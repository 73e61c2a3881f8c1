package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"leadpilot/dispatch"
	"leadpilot/models"
	"leadpilot/utils"
)

type CampaignController struct {
	DB     *gorm.DB
	Sender *dispatch.BatchSender
	Log    *logrus.Logger

	validate *validator.Validate
}

func NewCampaignController(db *gorm.DB, sender *dispatch.BatchSender, log *logrus.Logger) *CampaignController {
	return &CampaignController{
		DB:       db,
		Sender:   sender,
		Log:      log,
		validate: validator.New(),
	}
}

// BatchSend queues one batch worth of dispatch jobs for a campaign.
func (cc *CampaignController) BatchSend(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))
	if campaignID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", nil)
	}

	var input struct {
		SMSTemplateID uint `json:"sms_template_id" validate:"required"`
		UserID        uint `json:"user_id" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := cc.validate.Struct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing required fields", err)
	}

	queued, err := cc.Sender.EnqueueBatch(campaignID, input.SMSTemplateID, input.UserID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
		case errors.Is(err, dispatch.ErrNoTemplate),
			errors.Is(err, dispatch.ErrInvalidTemplate):
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Template cannot be sent", err)
		case errors.Is(err, dispatch.ErrSubscriptionInactive):
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Subscription is not active", err)
		case errors.Is(err, dispatch.ErrOutsideMessagingHours),
			errors.Is(err, dispatch.ErrMarketCooldown),
			errors.Is(err, dispatch.ErrDailyLimitReached):
			return utils.ErrorResponse(c, fiber.StatusTooManyRequests, "Sending is paused", err)
		case errors.Is(err, dispatch.ErrNothingToSend):
			return utils.ErrorResponse(c, fiber.StatusConflict, "No pending prospects to send", nil)
		}
		cc.Log.WithField("error", err).Error("batch send failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to queue batch", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"campaign_id": campaignID,
		"queued":      queued,
	}))
}

// GetCampaignStats returns the campaign's aggregate counters plus its stats
// batches with their per-reason skip breakdowns.
func (cc *CampaignController) GetCampaignStats(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))
	if campaignID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", nil)
	}

	var campaign models.Campaign
	err := cc.DB.Preload("Stats").First(&campaign, campaignID).Error
	if err == gorm.ErrRecordNotFound {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load campaign", nil)
	}

	var batches []models.StatsBatch
	err = cc.DB.Where("campaign_id = ?", campaignID).
		Order("batch_number ASC").
		Find(&batches).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load stats batches", nil)
	}

	batchViews := make([]fiber.Map, 0, len(batches))
	for i := range batches {
		b := &batches[i]
		batchViews = append(batchViews, fiber.Map{
			"batch_number":      b.BatchNumber,
			"provider":          b.Provider,
			"send_attempt":      b.SendAttempt,
			"sent":              b.Sent,
			"delivered":         b.Delivered,
			"received":          b.Received,
			"delivered_percent": b.DeliveredPercent(),
			"response_rate":     b.ResponseRate(),
			"total_skipped":     b.TotalSkipped(),
			"skip_details":      b.SkipDetails(),
			"last_send_utc":     b.LastSendUTC,
		})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"campaign_id": campaign.ID,
		"name":        campaign.Name,
		"stats":       campaign.Stats,
		"batches":     batchViews,
	}))
}
