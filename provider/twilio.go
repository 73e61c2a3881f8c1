package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadpilot/models"
)

const twilioAPIURL = "https://api.twilio.com/2010-04-01"

// TwilioGateway sends through the Twilio REST API. Twilio markets carry the
// Verizon-destined traffic the default provider can't deliver.
type TwilioGateway struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	client     *http.Client
}

func NewTwilioGateway(accountSID, authToken string, timeout time.Duration) *TwilioGateway {
	return &TwilioGateway{
		AccountSID: accountSID,
		AuthToken:  authToken,
		BaseURL:    twilioAPIURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (g *TwilioGateway) Provider() models.Provider {
	return models.ProviderTwilio
}

type twilioSendResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (g *TwilioGateway) Send(ctx context.Context, from, to, body string) (*Result, error) {
	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", g.BaseURL, g.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.AccountSID, g.AuthToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed twilioSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding twilio response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &SendError{
			Provider: models.ProviderTwilio,
			Code:     fmt.Sprintf("%d", parsed.Code),
			Detail:   parsed.Message,
		}
	}

	return &Result{MessageID: parsed.SID, Status: parsed.Status}, nil
}
