// Package status keeps the latest known state of every farm session in memory.
package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qtosh1/cats-farmer/internal/farmer"
)

type Snapshot struct {
	Session     string       `json:"session"`
	State       farmer.State `json:"state"`
	UserID      int64        `json:"user_id,omitempty"`
	Username    string       `json:"username,omitempty"`
	Balance     int64        `json:"balance"`
	TelegramAge float64      `json:"telegram_age"`
	TasksDone   int          `json:"tasks_done"`
	LastError   string       `json:"last_error,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
	NextRunAt   *time.Time   `json:"next_run_at,omitempty"`
}

// Registry implements farmer.Reporter.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Snapshot
}

var _ farmer.Reporter = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Snapshot)}
}

// Register makes a session visible before its farmer reports anything.
func (r *Registry) Register(session string) {
	r.update(session, time.Now(), func(s *Snapshot) {
		if s.State == "" {
			s.State = farmer.StateStarting
		}
	})
}

func (r *Registry) StateChanged(_ context.Context, ev farmer.StateChange) {
	r.update(ev.Session, ev.At, func(s *Snapshot) {
		s.State = ev.State
		if ev.Err != nil {
			s.LastError = ev.Err.Error()
		}
		s.NextRunAt = nil
		if !ev.NextRunAt.IsZero() {
			next := ev.NextRunAt
			s.NextRunAt = &next
		}
	})
}

func (r *Registry) Authorized(_ context.Context, ev farmer.Account) {
	r.update(ev.Session, ev.At, func(s *Snapshot) {
		s.UserID = ev.Profile.ID
		s.Username = ev.Profile.Username
		s.LastError = ""
	})
}

func (r *Registry) TaskCompleted(_ context.Context, ev farmer.TaskCompletion) {
	r.update(ev.Session, ev.At, func(s *Snapshot) {
		s.TasksDone++
	})
}

func (r *Registry) CycleFinished(_ context.Context, ev farmer.CycleReport) {
	r.update(ev.Session, ev.At, func(s *Snapshot) {
		if ev.User != nil {
			s.Balance = ev.User.TotalRewards
			s.TelegramAge = ev.User.TelegramAge
		}
		s.LastError = ""
	})
}

// List returns copies of all snapshots sorted by session name.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, copySnapshot(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Session < out[j].Session })
	return out
}

func (r *Registry) Get(session string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[session]
	if !ok {
		return Snapshot{}, false
	}
	return copySnapshot(s), true
}

func (r *Registry) update(session string, at time.Time, fn func(*Snapshot)) {
	if at.IsZero() {
		at = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[session]
	if !ok {
		s = &Snapshot{Session: session}
		r.sessions[session] = s
	}
	fn(s)
	s.UpdatedAt = at
}

func copySnapshot(s *Snapshot) Snapshot {
	out := *s
	if s.NextRunAt != nil {
		next := *s.NextRunAt
		out.NextRunAt = &next
	}
	return out
}
