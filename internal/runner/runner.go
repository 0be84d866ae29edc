// Package runner starts one farmer per session file and keeps them running
// side by side.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qtosh1/cats-farmer/internal/logging"
	"github.com/qtosh1/cats-farmer/internal/proxy"
	"github.com/qtosh1/cats-farmer/internal/status"
	"github.com/qtosh1/cats-farmer/internal/telegram"
	"github.com/qtosh1/cats-farmer/internal/useragent"
)

// ErrNoSessions is returned when the sessions directory holds no session files.
var ErrNoSessions = errors.New("runner: no session files found")

// Farm is a runnable per-session loop.
type Farm interface {
	Run(ctx context.Context) error
}

// Binding is what a session farms with.
type Binding struct {
	Session   string
	UserAgent string
	// Proxy is nil for direct connections.
	Proxy  *proxy.Proxy
	Logger *zap.Logger
}

// Factory builds the farm for one session.
type Factory func(b Binding) (Farm, error)

type Options struct {
	SessionsDir   string
	StartDelayMax time.Duration
	UserAgents    *useragent.Store
	// Proxies are bound round-robin; empty means every session is direct.
	Proxies  []proxy.Proxy
	Registry *status.Registry
	Factory  Factory
	Logger   *zap.Logger
	// Seed drives the start stagger; 0 picks a random one.
	Seed int64
}

type Runner struct {
	opts  Options
	faker *gofakeit.Faker
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runner{opts: opts, faker: gofakeit.New(opts.Seed), sleep: sleepCtx}
}

// Run blocks until ctx is cancelled or every farm has stopped.
func (r *Runner) Run(ctx context.Context) error {
	names, err := telegram.ListSessions(r.opts.SessionsDir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("%w in %s", ErrNoSessions, r.opts.SessionsDir)
	}

	bindings, err := r.bind(names)
	if err != nil {
		return err
	}

	farms := make([]Farm, len(bindings))
	for i, b := range bindings {
		farms[i], err = r.opts.Factory(b)
		if err != nil {
			return fmt.Errorf("runner: build %s: %w", b.Session, err)
		}
		if r.opts.Registry != nil {
			r.opts.Registry.Register(b.Session)
		}
	}
	r.opts.Logger.Info("Starting farmers", zap.Int("sessions", len(farms)), zap.Int("proxies", len(r.opts.Proxies)))

	g, ctx := errgroup.WithContext(ctx)
	for i := range farms {
		b, farm := bindings[i], farms[i]
		delay := r.startDelay()
		g.Go(func() error {
			if delay > 0 {
				b.Logger.Info("Delayed start", zap.Duration("delay", delay))
				if err := r.sleep(ctx, delay); err != nil {
					return nil
				}
			}
			err := farm.Run(ctx)
			switch {
			case errors.Is(err, telegram.ErrInvalidSession):
				b.Logger.Error("Invalid Session", zap.Error(err))
				return nil
			case err != nil && ctx.Err() == nil:
				return fmt.Errorf("runner: %s: %w", b.Session, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) bind(names []string) ([]Binding, error) {
	assigned := proxy.Assign(names, r.opts.Proxies)
	out := make([]Binding, 0, len(names))
	for _, name := range names {
		b := Binding{
			Session: name,
			Proxy:   assigned[name],
			Logger:  logging.ForSession(r.opts.Logger, name),
		}
		if r.opts.UserAgents != nil {
			ua, err := r.opts.UserAgents.Ensure(name)
			if err != nil {
				return nil, fmt.Errorf("runner: user agent for %s: %w", name, err)
			}
			b.UserAgent = ua
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *Runner) startDelay() time.Duration {
	if r.opts.StartDelayMax <= 0 {
		return 0
	}
	maxMs := int(r.opts.StartDelayMax / time.Millisecond)
	if maxMs <= 1 {
		return 0
	}
	return time.Duration(r.faker.Number(0, maxMs-1)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
