// Package notify sends farm reports to a Telegram chat through the Bot API.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/qtosh1/cats-farmer/internal/farmer"
)

const sendTimeout = 10 * time.Second

type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

var _ farmer.Reporter = (*Notifier)(nil)

// New logs in with token against the public Bot API.
func New(token string, chatID int64, logger *zap.Logger) (*Notifier, error) {
	return NewWithEndpoint(token, tgbotapi.APIEndpoint, chatID, logger)
}

// NewWithEndpoint is New against a custom endpoint in the
// "https://host/bot%s/%s" form.
func NewWithEndpoint(token, endpoint string, chatID int64, logger *zap.Logger) (*Notifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("notify: bot login: %w", err)
	}
	logger.Info("Notifier bot authorized", zap.String("bot", api.Self.UserName), zap.Int64("chat_id", chatID))
	return &Notifier{api: api, chatID: chatID, logger: logger}, nil
}

func (n *Notifier) StateChanged(_ context.Context, ev farmer.StateChange) {
	if ev.State != farmer.StateInvalid {
		return
	}
	text := fmt.Sprintf("%s | Invalid session", ev.Session)
	if ev.Err != nil {
		text += ": " + ev.Err.Error()
	}
	n.send(text)
}

func (n *Notifier) Authorized(context.Context, farmer.Account) {}

func (n *Notifier) TaskCompleted(_ context.Context, ev farmer.TaskCompletion) {
	n.send(fmt.Sprintf("%s | Done %s task %d, got %d points", ev.Session, ev.Task.Type, ev.Task.ID, ev.Task.RewardPoints))
}

func (n *Notifier) CycleFinished(_ context.Context, ev farmer.CycleReport) {
	text := ev.Session + " | Cycle finished"
	if ev.User != nil {
		text += fmt.Sprintf("\nTotal balance: %d", ev.User.TotalRewards)
	}
	text += fmt.Sprintf("\nTasks done: %d", ev.TasksDone)
	if !ev.NextRunAt.IsZero() {
		text += "\nNext run: " + ev.NextRunAt.Format(time.DateTime)
	}
	n.send(text)
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		n.logger.Warn("Failed to send notification", zap.Error(err))
	}
}
