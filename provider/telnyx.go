package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"leadpilot/models"
)

const telnyxAPIURL = "https://api.telnyx.com/v2"

// TelnyxGateway sends through the Telnyx v2 messages API, our default
// provider.
type TelnyxGateway struct {
	APIKey  string
	BaseURL string
	client  *http.Client
}

func NewTelnyxGateway(apiKey string, timeout time.Duration) *TelnyxGateway {
	return &TelnyxGateway{
		APIKey:  apiKey,
		BaseURL: telnyxAPIURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *TelnyxGateway) Provider() models.Provider {
	return models.ProviderTelnyx
}

type telnyxSendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type telnyxSendResponse struct {
	Data struct {
		ID string `json:"id"`
		To []struct {
			Status string `json:"status"`
		} `json:"to"`
	} `json:"data"`
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (g *TelnyxGateway) Send(ctx context.Context, from, to, body string) (*Result, error) {
	payload, err := json.Marshal(telnyxSendRequest{From: from, To: to, Text: body})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed telnyxSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding telnyx response: %w", err)
	}

	if resp.StatusCode >= 400 {
		sendErr := &SendError{Provider: models.ProviderTelnyx}
		if len(parsed.Errors) > 0 {
			sendErr.Code = parsed.Errors[0].Code
			sendErr.Detail = parsed.Errors[0].Detail
		}
		return nil, sendErr
	}

	result := &Result{MessageID: parsed.Data.ID}
	if len(parsed.Data.To) > 0 {
		result.Status = parsed.Data.To[0].Status
	}
	return result, nil
}
