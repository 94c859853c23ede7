package notify

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"
)

const (
	promptSend = "Send"
	promptSkip = "Skip"
)

// Confirming asks for confirmation before every outgoing message. Skipped
// messages are logged and dropped, not errors.
type Confirming struct {
	inner  Notifier
	logger *zap.Logger

	// Overridable in tests.
	ask func(label string) (string, error)
}

func NewConfirming(inner Notifier, logger *zap.Logger) *Confirming {
	return &Confirming{
		inner:  inner,
		logger: logger,
		ask: func(label string) (string, error) {
			prompt := promptui.Select{
				Label: label,
				Items: []string{promptSend, promptSkip},
			}
			_, choice, err := prompt.Run()
			return choice, err
		},
	}
}

func (c *Confirming) Send(ctx context.Context, p *Payload) error {
	label := fmt.Sprintf("Send %s notification %q?", p.Kind, p.Subject)

	choice, err := c.ask(label)
	if err != nil {
		return fmt.Errorf("confirmation prompt: %w", err)
	}

	if choice != promptSend {
		c.logger.Info("notification skipped by user", zap.String("subject", p.Subject))
		return nil
	}

	return c.inner.Send(ctx, p)
}
