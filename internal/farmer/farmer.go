// Package farmer runs the per-session loop: authorize in the mini-app,
// register the user, then complete pending tasks on a fixed cycle.
package farmer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/qtosh1/cats-farmer/internal/cats"
	"github.com/qtosh1/cats-farmer/internal/proxy"
	"github.com/qtosh1/cats-farmer/internal/telegram"
)

// TelegramSession is the MTProto side of a farm account.
type TelegramSession interface {
	Name() string
	Do(ctx context.Context, fn func(ctx context.Context, api telegram.API) error) error
	WebAppData(ctx context.Context, req telegram.WebAppRequest) (telegram.WebAppAuth, error)
	JoinChannel(ctx context.Context, username string) error
	LeaveChannel(ctx context.Context, username string) error
}

// Backend is the Cats REST API.
type Backend interface {
	SetAuth(webAppData string)
	CreateUser(ctx context.Context, referral string) (bool, error)
	User(ctx context.Context) (cats.User, error)
	Tasks(ctx context.Context, group string) ([]cats.Task, error)
	CompleteTask(ctx context.Context, id int64) (bool, error)
	CheckTask(ctx context.Context, id int64) (bool, error)
	ProxyIP(ctx context.Context) (string, error)
}

var (
	_ TelegramSession = (*telegram.Session)(nil)
	_ Backend         = (*cats.Client)(nil)
)

type Config struct {
	Bot            string
	ShortName      string
	StartParam     string
	TaskGroup      string
	DoChannelTasks bool
	CycleSleep     time.Duration
	ErrorSleep     time.Duration
	// JoinCheckDelay separates joining a channel from checking the task.
	JoinCheckDelay time.Duration
	UserAgent      string
	Proxy          *proxy.Proxy
}

type Farmer struct {
	cfg      Config
	tg       TelegramSession
	backend  Backend
	reporter Reporter
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	needAuth bool
}

func New(cfg Config, tg TelegramSession, backend Backend, reporter Reporter, logger *zap.Logger) *Farmer {
	if reporter == nil {
		reporter = Reporters()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JoinCheckDelay == 0 {
		cfg.JoinCheckDelay = time.Second
	}
	return &Farmer{
		cfg:      cfg,
		tg:       tg,
		backend:  backend,
		reporter: reporter,
		logger:   logger,
		sleep:    sleepCtx,
		now:      time.Now,
		needAuth: true,
	}
}

// Run farms until ctx is cancelled. It returns an error wrapping
// telegram.ErrInvalidSession when the session is unusable and nil on
// cancellation. Every other failure is logged and retried.
func (f *Farmer) Run(ctx context.Context) error {
	f.setState(ctx, StateStarting, nil, time.Time{})

	if f.cfg.Proxy != nil {
		f.checkProxy(ctx)
	}

	for {
		if f.needAuth {
			if err := f.authorize(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		next, err := f.cycle(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, telegram.ErrInvalidSession):
			f.setState(ctx, StateInvalid, err, time.Time{})
			return err
		case err != nil:
			if cats.IsUnauthorized(err) {
				f.logger.Warn("Backend rejected web app data, re-authorizing")
				f.needAuth = true
			}
			f.logger.Error("Unknown error", zap.Error(err))
			next = f.cfg.ErrorSleep
			f.setState(ctx, StateError, err, f.now().Add(next))
		default:
			f.setState(ctx, StateSleeping, nil, f.now().Add(next))
		}

		if err := f.sleep(ctx, next); err != nil {
			return nil
		}
	}
}

func (f *Farmer) checkProxy(ctx context.Context) {
	ip, err := f.backend.ProxyIP(ctx)
	if err != nil {
		f.logger.Error("Proxy check failed", zap.Stringer("proxy", f.cfg.Proxy), zap.Error(err))
		return
	}
	f.logger.Info("Proxy IP", zap.String("ip", ip))
}

// authorize repeats the auth exchange until it succeeds, the session turns
// out invalid or ctx ends.
func (f *Farmer) authorize(ctx context.Context) error {
	for {
		f.setState(ctx, StateAuthorizing, nil, time.Time{})

		auth, err := f.tg.WebAppData(ctx, telegram.WebAppRequest{
			Bot:        f.cfg.Bot,
			ShortName:  f.cfg.ShortName,
			StartParam: f.cfg.StartParam,
			Platform:   telegram.DefaultPlatform,
		})
		if err == nil {
			f.backend.SetAuth(auth.Data)
			f.needAuth = false
			acc := Account{
				Session:   f.tg.Name(),
				UserAgent: f.cfg.UserAgent,
				Profile:   auth.Profile,
				At:        f.now(),
			}
			if f.cfg.Proxy != nil {
				acc.Proxy = f.cfg.Proxy.String()
			}
			f.reporter.Authorized(ctx, acc)
			return nil
		}
		if errors.Is(err, telegram.ErrInvalidSession) {
			f.setState(ctx, StateInvalid, err, time.Time{})
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Error("Unknown error during Authorization", zap.Error(err))
		f.setState(ctx, StateError, err, f.now().Add(f.cfg.ErrorSleep))
		if err := f.sleep(ctx, f.cfg.ErrorSleep); err != nil {
			return err
		}
	}
}

// cycle runs one pass over the account and returns how long to sleep.
func (f *Farmer) cycle(ctx context.Context) (time.Duration, error) {
	f.setState(ctx, StateFarming, nil, time.Time{})

	created, err := f.backend.CreateUser(ctx, f.cfg.StartParam)
	switch {
	case cats.IsUnauthorized(err):
		return 0, err
	case err != nil:
		f.logger.Error("Error in create user", zap.Error(err))
	case created:
		f.logger.Info("Successfully created user")
	}

	var user *cats.User
	info, err := f.backend.User(ctx)
	switch {
	case cats.IsUnauthorized(err):
		return 0, err
	case err != nil:
		f.logger.Error("Error in get user info", zap.Error(err))
	default:
		user = &info
		f.logger.Info(fmt.Sprintf("Telegram age: %v year | Total balance: %d, where %d from referrals, %d from tasks and %d from account age",
			info.TelegramAge, info.TotalRewards, info.ReferrerReward, info.TasksReward, info.TelegramAgeReward))
	}

	tasks, err := f.backend.Tasks(ctx, f.cfg.TaskGroup)
	if err != nil {
		return 0, fmt.Errorf("get tasks: %w", err)
	}
	if len(tasks) == 0 {
		f.logger.Warn("No tasks received, retrying")
		return f.cfg.ErrorSleep, nil
	}

	done, err := f.openLinkTasks(ctx, tasks)
	if err != nil {
		return 0, err
	}
	if f.cfg.DoChannelTasks {
		n, err := f.channelTasks(ctx, tasks)
		done += n
		if err != nil {
			return 0, err
		}
	}

	next := f.cfg.CycleSleep
	f.logger.Info("Cycle finished, nothing left to do until the next one",
		zap.Int("tasks_done", done), zap.Duration("sleep", next))
	f.reporter.CycleFinished(ctx, CycleReport{
		Session:   f.tg.Name(),
		User:      user,
		TasksDone: done,
		NextRunAt: f.now().Add(next),
		At:        f.now(),
	})
	return next, nil
}

func (f *Farmer) openLinkTasks(ctx context.Context, tasks []cats.Task) (int, error) {
	done := 0
	for _, t := range cats.PendingOfType(tasks, cats.TaskOpenLink) {
		ok, err := f.backend.CompleteTask(ctx, t.ID)
		if err != nil {
			if cats.IsUnauthorized(err) || ctx.Err() != nil {
				return done, err
			}
			f.logger.Error("Error in open link task", zap.Int64("task_id", t.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		done++
		f.logger.Info(fmt.Sprintf("Done open link task with id - %d, got - %d points", t.ID, t.RewardPoints))
		f.reporter.TaskCompleted(ctx, TaskCompletion{Session: f.tg.Name(), Task: t, At: f.now()})
	}
	return done, nil
}

// channelTasks joins each channel, lets the backend check the subscription
// and leaves again, all over a single connection.
func (f *Farmer) channelTasks(ctx context.Context, tasks []cats.Task) (int, error) {
	pending := cats.PendingOfType(tasks, cats.TaskSubscribeToChannel)
	if len(pending) == 0 {
		return 0, nil
	}

	done := 0
	err := f.tg.Do(ctx, func(ctx context.Context, _ telegram.API) error {
		for _, t := range pending {
			ok, err := f.channelTask(ctx, t)
			if err != nil {
				if errors.Is(err, telegram.ErrInvalidSession) || cats.IsUnauthorized(err) || ctx.Err() != nil {
					return err
				}
				f.logger.Error("Error in join channel task", zap.Int64("task_id", t.ID), zap.Error(err))
				continue
			}
			if ok {
				done++
				f.logger.Info(fmt.Sprintf("Done join channel task with id - %d, got - %d points", t.ID, t.RewardPoints))
				f.reporter.TaskCompleted(ctx, TaskCompletion{Session: f.tg.Name(), Task: t, At: f.now()})
			}
		}
		return nil
	})
	return done, err
}

func (f *Farmer) channelTask(ctx context.Context, t cats.Task) (bool, error) {
	username, err := cats.ChannelUsername(t.Params.ChannelURL)
	if err != nil {
		return false, err
	}
	if err := f.tg.JoinChannel(ctx, username); err != nil {
		return false, err
	}
	defer func() {
		if err := f.tg.LeaveChannel(ctx, username); err != nil {
			f.logger.Warn("Failed to leave channel", zap.String("channel", username), zap.Error(err))
		}
	}()

	if err := f.sleep(ctx, f.cfg.JoinCheckDelay); err != nil {
		return false, err
	}
	return f.backend.CheckTask(ctx, t.ID)
}

func (f *Farmer) setState(ctx context.Context, s State, err error, next time.Time) {
	f.reporter.StateChanged(ctx, StateChange{
		Session:   f.tg.Name(),
		State:     s,
		Err:       err,
		NextRunAt: next,
		At:        f.now(),
	})
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
