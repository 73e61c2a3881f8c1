package provider

import (
	"context"
	"errors"
	"fmt"

	"leadpilot/models"
)

// Provider error codes we special-case in the dispatch pipeline.
const (
	// Telnyx: the recipient previously texted STOP to this number.
	ErrCodeStopRule = "40300"
	// Twilio: the carrier rejected the message outright.
	ErrCodeCarrierRejected = "30007"
	// Telnyx: the carrier filtered the message as spam. Reported through the
	// status callback, and counted toward the market spam cooldown.
	ErrCodeSpamFiltered = "40002"
)

// Result is the normalized response shape every gateway returns. Each
// provider reports a different payload; adapters flatten it to this.
type Result struct {
	MessageID string
	Status    string
}

// SendError is a rejection by the provider API, carrying the provider's
// error code.
type SendError struct {
	Provider models.Provider
	Code     string
	Detail   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed: %s (%s)", e.Provider, e.Detail, e.Code)
}

// IsOptOut reports whether the error means the recipient has opted out and
// the opt-out must be recorded permanently.
func (e *SendError) IsOptOut() bool {
	return e.Code == ErrCodeStopRule
}

// IsCarrierRejected reports whether the carrier refused the message, turning
// the dispatch into a carrier skip instead of a failed send.
func (e *SendError) IsCarrierRejected() bool {
	return e.Code == ErrCodeCarrierRejected
}

// AsSendError unwraps a provider rejection from any error.
func AsSendError(err error) (*SendError, bool) {
	var se *SendError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Gateway abstracts the wire call to one SMS carrier.
type Gateway interface {
	// Send delivers one message. A *SendError means the provider rejected
	// it; any other error is a transport problem and the delivery state is
	// unknown.
	Send(ctx context.Context, from, to, body string) (*Result, error)
	Provider() models.Provider
}

// Registry holds one gateway per provider and picks the right one for a
// pooled phone number.
type Registry struct {
	gateways map[models.Provider]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[models.Provider]Gateway)}
	for _, gw := range gateways {
		r.gateways[gw.Provider()] = gw
	}
	return r
}

// ForNumber returns the gateway that can send from the given pooled number.
func (r *Registry) ForNumber(number *models.PhoneNumber) (Gateway, error) {
	gw, ok := r.gateways[number.Provider]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for provider %q", number.Provider)
	}
	return gw, nil
}
