package provider

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"leadpilot/models"
)

// SandboxGateway fakes sends outside production, returning generated message
// ids without touching a carrier API.
type SandboxGateway struct {
	For models.Provider

	// FailWith, when set, is returned for every send. Tests use this to
	// exercise the provider-error paths.
	FailWith error

	mu   sync.Mutex
	sent []SandboxMessage
}

// SandboxMessage is a record of a faked send.
type SandboxMessage struct {
	From, To, Body string
}

func NewSandboxGateway(p models.Provider) *SandboxGateway {
	return &SandboxGateway{For: p}
}

func (g *SandboxGateway) Provider() models.Provider {
	return g.For
}

func (g *SandboxGateway) Send(ctx context.Context, from, to, body string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.FailWith != nil {
		return nil, g.FailWith
	}

	g.mu.Lock()
	g.sent = append(g.sent, SandboxMessage{From: from, To: to, Body: body})
	g.mu.Unlock()

	return &Result{MessageID: uuid.NewString(), Status: "queued"}, nil
}

// Sent returns a copy of every message faked so far.
func (g *SandboxGateway) Sent() []SandboxMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SandboxMessage, len(g.sent))
	copy(out, g.sent)
	return out
}
