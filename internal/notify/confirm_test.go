package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type captureNotifier struct {
	sent []*Payload
}

func (c *captureNotifier) Send(_ context.Context, p *Payload) error {
	c.sent = append(c.sent, p)
	return nil
}

func TestConfirmingSendsOnApproval(t *testing.T) {
	inner := &captureNotifier{}
	c := NewConfirming(inner, zap.NewNop())
	c.ask = func(string) (string, error) { return promptSend, nil }

	if err := c.Send(context.Background(), &Payload{Subject: "s"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.sent) != 1 {
		t.Fatalf("expected the payload to pass through, got %d", len(inner.sent))
	}
}

func TestConfirmingSkipIsNotAnError(t *testing.T) {
	inner := &captureNotifier{}
	c := NewConfirming(inner, zap.NewNop())
	c.ask = func(string) (string, error) { return promptSkip, nil }

	if err := c.Send(context.Background(), &Payload{Subject: "s"}); err != nil {
		t.Fatalf("a skip must not be an error: %v", err)
	}
	if len(inner.sent) != 0 {
		t.Fatal("a skipped payload must not reach the inner notifier")
	}
}

func TestConfirmingPromptFailure(t *testing.T) {
	inner := &captureNotifier{}
	c := NewConfirming(inner, zap.NewNop())
	c.ask = func(string) (string, error) { return "", errors.New("terminal closed") }

	if err := c.Send(context.Background(), &Payload{Subject: "s"}); err == nil {
		t.Fatal("expected a prompt failure to propagate")
	}
}
