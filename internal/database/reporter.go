package database

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qtosh1/cats-farmer/internal/farmer"
)

const reportTimeout = 5 * time.Second

// Reporter persists farmer events. Write failures are logged and dropped.
type Reporter struct {
	store  *Store
	logger *zap.Logger
}

var _ farmer.Reporter = (*Reporter)(nil)

func NewReporter(store *Store, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{store: store, logger: logger}
}

func (r *Reporter) StateChanged(context.Context, farmer.StateChange) {}

func (r *Reporter) Authorized(ctx context.Context, ev farmer.Account) {
	ctx, cancel := r.writeContext(ctx)
	defer cancel()

	p := UpsertAccountParams{SessionName: ev.Session, UserAgent: ev.UserAgent}
	if ev.Profile.ID != 0 {
		id := ev.Profile.ID
		p.TelegramID = &id
	}
	if ev.Profile.Username != "" {
		name := ev.Profile.Username
		p.Username = &name
	}
	if ev.Proxy != "" {
		proxy := ev.Proxy
		p.Proxy = &proxy
	}
	if _, err := r.store.UpsertAccount(ctx, p); err != nil {
		r.logger.Warn("Failed to store account", zap.String("session", ev.Session), zap.Error(err))
	}
}

func (r *Reporter) TaskCompleted(ctx context.Context, ev farmer.TaskCompletion) {
	ctx, cancel := r.writeContext(ctx)
	defer cancel()

	_, err := r.store.RecordTaskCompletion(ctx, RecordTaskParams{
		SessionName:  ev.Session,
		TaskID:       ev.Task.ID,
		TaskType:     ev.Task.Type,
		Title:        ev.Task.Title,
		RewardPoints: ev.Task.RewardPoints,
		CompletedAt:  ev.At,
	})
	if err != nil {
		r.logger.Warn("Failed to store task completion", zap.String("session", ev.Session), zap.Int64("task_id", ev.Task.ID), zap.Error(err))
	}
}

func (r *Reporter) CycleFinished(ctx context.Context, ev farmer.CycleReport) {
	if ev.User == nil {
		return
	}
	ctx, cancel := r.writeContext(ctx)
	defer cancel()

	if _, err := r.store.RecordBalance(ctx, ev.Session, ev.User.TotalRewards, ev.User.TelegramAge); err != nil {
		r.logger.Warn("Failed to store balance", zap.String("session", ev.Session), zap.Error(err))
	}
}

// writeContext is detached from farmer cancellation.
func (r *Reporter) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
}
