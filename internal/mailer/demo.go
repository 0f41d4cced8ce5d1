package mailer

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ignite/gift-exchange/internal/pkg/logger"
)

// DemoSender simulates deliveries. Every send succeeds and yields a
// synthetic message id so the dispatch and webhook paths stay exercisable
// without a provider account.
type DemoSender struct{}

func NewDemoSender() *DemoSender { return &DemoSender{} }

func (d *DemoSender) Send(ctx context.Context, msg *Message) (string, error) {
	id := fmt.Sprintf("demo_message_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
	logger.Info("demo mode: simulated email send",
		"to", msg.To,
		"subject", msg.Subject,
		"messageId", id,
	)
	return id, nil
}

func (d *DemoSender) DemoMode() bool { return true }
