// Package notification is the boundary to the (external) push/email delivery
// system. Dispatch is fire-and-forget: a failed send is logged and never
// propagated back into a financial mutation.
package notification

import (
	"context"

	"github.com/adilmk/homeserve/internal/logger"
	"go.uber.org/zap"
)

type Notification struct {
	Recipient int64                  `json:"recipient"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, n Notification)
}

type logNotifier struct{}

// NewLogNotifier records notifications in the log only; the real delivery
// transport lives outside this service.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (l *logNotifier) Send(_ context.Context, n Notification) {
	logger.Log.Info("notification dispatched",
		zap.Int64("recipient", n.Recipient),
		zap.String("type", n.Type),
		zap.String("title", n.Title),
	)
}
