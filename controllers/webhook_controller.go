package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"leadpilot/dispatch"
	"leadpilot/utils"
)

// WebhookController receives provider callbacks. Providers retry on non-2xx,
// so handlers only error when the payload itself cannot be read.
type WebhookController struct {
	Feedback *dispatch.Feedback
	Log      *logrus.Logger
}

func NewWebhookController(feedback *dispatch.Feedback, log *logrus.Logger) *WebhookController {
	return &WebhookController{Feedback: feedback, Log: log}
}

type telnyxWebhookPayload struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			ID   string `json:"id"`
			Text string `json:"text"`
			From struct {
				PhoneNumber string `json:"phone_number"`
			} `json:"from"`
			To []struct {
				PhoneNumber string `json:"phone_number"`
				Status      string `json:"status"`
			} `json:"to"`
			Errors []struct {
				Code string `json:"code"`
			} `json:"errors"`
		} `json:"payload"`
	} `json:"data"`
}

// TelnyxStatus handles message status events from Telnyx.
func (wc *WebhookController) TelnyxStatus(c *fiber.Ctx) error {
	var payload telnyxWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", err)
	}

	p := payload.Data.Payload
	status := ""
	if len(p.To) > 0 {
		status = p.To[0].Status
	}
	errorCode := ""
	if len(p.Errors) > 0 {
		errorCode = p.Errors[0].Code
	}

	if err := wc.Feedback.ProcessStatusCallback(p.ID, status, errorCode); err != nil {
		wc.Log.WithFields(logrus.Fields{
			"provider_message_id": p.ID,
			"error":               err,
		}).Error("telnyx status callback failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Callback processing failed", nil)
	}
	return c.SendStatus(fiber.StatusOK)
}

// TelnyxInbound handles message.received events from Telnyx.
func (wc *WebhookController) TelnyxInbound(c *fiber.Ctx) error {
	var payload telnyxWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", err)
	}

	p := payload.Data.Payload
	to := ""
	if len(p.To) > 0 {
		to = p.To[0].PhoneNumber
	}

	if err := wc.Feedback.ProcessInboundMessage(p.From.PhoneNumber, to, p.Text); err != nil {
		wc.Log.WithField("error", err).Error("telnyx inbound processing failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Inbound processing failed", nil)
	}
	return c.SendStatus(fiber.StatusOK)
}

// TwilioStatus handles Twilio's form-encoded status callbacks.
func (wc *WebhookController) TwilioStatus(c *fiber.Ctx) error {
	messageID := c.FormValue("MessageSid")
	status := c.FormValue("MessageStatus")
	errorCode := c.FormValue("ErrorCode")
	if errorCode != "" {
		// Twilio reports numeric codes; normalize so comparisons match.
		if _, err := strconv.Atoi(errorCode); err != nil {
			errorCode = ""
		}
	}

	if err := wc.Feedback.ProcessStatusCallback(messageID, status, errorCode); err != nil {
		wc.Log.WithFields(logrus.Fields{
			"provider_message_id": messageID,
			"error":               err,
		}).Error("twilio status callback failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Callback processing failed", nil)
	}
	return c.SendStatus(fiber.StatusOK)
}

// TwilioInbound handles Twilio's form-encoded inbound message webhook.
func (wc *WebhookController) TwilioInbound(c *fiber.Ctx) error {
	from := c.FormValue("From")
	to := c.FormValue("To")
	body := c.FormValue("Body")

	if err := wc.Feedback.ProcessInboundMessage(from, to, body); err != nil {
		wc.Log.WithField("error", err).Error("twilio inbound processing failed")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Inbound processing failed", nil)
	}
	return c.SendStatus(fiber.StatusOK)
}
