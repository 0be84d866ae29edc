package farmer

import (
	"context"
	"time"

	"github.com/qtosh1/cats-farmer/internal/cats"
	"github.com/qtosh1/cats-farmer/internal/telegram"
)

// State is the lifecycle phase of a farmer.
type State string

const (
	StateStarting    State = "starting"
	StateAuthorizing State = "authorizing"
	StateFarming     State = "farming"
	StateSleeping    State = "sleeping"
	StateError       State = "error"
	StateInvalid     State = "invalid"
)

type StateChange struct {
	Session string
	State   State
	// Err is set for StateError and StateInvalid.
	Err       error
	NextRunAt time.Time
	At        time.Time
}

// Account is published after every successful auth exchange.
type Account struct {
	Session   string
	UserAgent string
	Proxy     string
	Profile   telegram.Profile
	At        time.Time
}

type TaskCompletion struct {
	Session string
	Task    cats.Task
	At      time.Time
}

type CycleReport struct {
	Session string
	// User is nil when the account info could not be fetched this cycle.
	User      *cats.User
	TasksDone int
	NextRunAt time.Time
	At        time.Time
}

// Reporter receives farmer events. Implementations must not block for long
// and handle their own errors.
type Reporter interface {
	StateChanged(ctx context.Context, ev StateChange)
	Authorized(ctx context.Context, ev Account)
	TaskCompleted(ctx context.Context, ev TaskCompletion)
	CycleFinished(ctx context.Context, ev CycleReport)
}

type multiReporter []Reporter

// Reporters fans events out to every non-nil reporter.
func Reporters(rs ...Reporter) Reporter {
	out := make(multiReporter, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiReporter) StateChanged(ctx context.Context, ev StateChange) {
	for _, r := range m {
		r.StateChanged(ctx, ev)
	}
}

func (m multiReporter) Authorized(ctx context.Context, ev Account) {
	for _, r := range m {
		r.Authorized(ctx, ev)
	}
}

func (m multiReporter) TaskCompleted(ctx context.Context, ev TaskCompletion) {
	for _, r := range m {
		r.TaskCompleted(ctx, ev)
	}
}

func (m multiReporter) CycleFinished(ctx context.Context, ev CycleReport) {
	for _, r := range m {
		r.CycleFinished(ctx, ev)
	}
}
