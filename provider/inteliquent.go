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

// InteliquentGateway sends through the Inteliquent microservice, the legacy
// carrier kept for its low market minimums.
type InteliquentGateway struct {
	BaseURL string
	client  *http.Client
}

func NewInteliquentGateway(baseURL string, timeout time.Duration) *InteliquentGateway {
	return &InteliquentGateway{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *InteliquentGateway) Provider() models.Provider {
	return models.ProviderInteliquent
}

type inteliquentSendRequest struct {
	ToNumber  string   `json:"to_number"`
	Text      string   `json:"text"`
	MediaURLs []string `json:"media_urls"`
}

type inteliquentSendResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (g *InteliquentGateway) Send(ctx context.Context, from, to, body string) (*Result, error) {
	payload, err := json.Marshal(inteliquentSendRequest{ToNumber: to, Text: body, MediaURLs: []string{}})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/numbers/%s/send", g.BaseURL, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed inteliquentSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding inteliquent response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &SendError{
			Provider: models.ProviderInteliquent,
			Code:     fmt.Sprintf("%d", resp.StatusCode),
			Detail:   parsed.Error,
		}
	}

	return &Result{MessageID: parsed.SID, Status: parsed.Status}, nil
}
