// Package telegram drives the MTProto side of a farm account: the
// connect/disconnect lifecycle, the mini-app auth exchange and channel
// membership for subscription tasks.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
	xproxy "golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

// SessionExt is the file extension of session files in the sessions directory.
const SessionExt = ".session"

// ErrInvalidSession means the session can no longer be used and must be
// recreated with login.
var ErrInvalidSession = errors.New("telegram: invalid session")

// invalidSessionErrors are RPC error types that permanently break a session.
var invalidSessionErrors = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"USER_DEACTIVATED",
	"USER_DEACTIVATED_BAN",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
}

// API is the subset of *tg.Client the farmer needs.
type API interface {
	ContactsResolveUsername(ctx context.Context, request *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error)
	MessagesRequestAppWebView(ctx context.Context, request *tg.MessagesRequestAppWebViewRequest) (*tg.WebViewResultURL, error)
	UsersGetUsers(ctx context.Context, id []tg.InputUserClass) ([]tg.UserClass, error)
	ChannelsJoinChannel(ctx context.Context, channel tg.InputChannelClass) (tg.UpdatesClass, error)
	ChannelsLeaveChannel(ctx context.Context, channel tg.InputChannelClass) (tg.UpdatesClass, error)
}

var _ API = (*tg.Client)(nil)

// connector opens an authorized connection, runs fn and disconnects.
type connector func(ctx context.Context, fn func(ctx context.Context, api API) error) error

// Options configure a Session.
type Options struct {
	Name    string
	Dir     string
	APIID   int
	APIHash string
	// Dialer routes MTProto through a proxy. Nil connects directly.
	Dialer xproxy.ContextDialer
	Device telegram.DeviceConfig
	Logger *zap.Logger
}

// Session is one Telegram account backed by <Dir>/<Name>.session.
type Session struct {
	name    string
	logger  *zap.Logger
	connect connector
	sleep   func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// NewSession prepares a session. No connection is made until Do.
func NewSession(opts Options) *Session {
	opts = withDefaults(opts)
	return newSession(opts.Name, opts.Logger, gotdConnector(opts))
}

func withDefaults(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

func newSession(name string, logger *zap.Logger, connect connector) *Session {
	return &Session{
		name:    name,
		logger:  logger,
		connect: connect,
		sleep:   sleepCtx,
	}
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

type liveKey struct{ s *Session }

// Do runs fn with a live connection. A nested Do on the same session
// reuses the connection of the outer call; otherwise the session connects,
// checks authorization and disconnects when fn returns.
func (s *Session) Do(ctx context.Context, fn func(ctx context.Context, api API) error) error {
	if api, ok := ctx.Value(liveKey{s}).(API); ok {
		return fn(ctx, api)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.connect(ctx, func(ctx context.Context, api API) error {
		return fn(context.WithValue(ctx, liveKey{s}, api), api)
	})
	return classify(err)
}

func classify(err error) error {
	if err == nil || errors.Is(err, ErrInvalidSession) {
		return err
	}
	if tgerr.Is(err, invalidSessionErrors...) {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return err
}

func clientOptions(opts Options) telegram.Options {
	o := telegram.Options{
		SessionStorage: &telegram.FileSessionStorage{Path: SessionPath(opts.Dir, opts.Name)},
		Logger:         opts.Logger.Named("mtproto"),
		NoUpdates:      true,
		Device:         opts.Device,
		Middlewares: []telegram.Middleware{
			ratelimit.New(rate.Every(100*time.Millisecond), 5),
		},
	}
	if opts.Dialer != nil {
		o.Resolver = dcs.Plain(dcs.PlainOptions{Dial: opts.Dialer.DialContext})
	}
	return o
}

func gotdConnector(opts Options) connector {
	return func(ctx context.Context, fn func(ctx context.Context, api API) error) error {
		if _, err := os.Stat(SessionPath(opts.Dir, opts.Name)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}

		client := telegram.NewClient(opts.APIID, opts.APIHash, clientOptions(opts))
		return client.Run(ctx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status: %w", err)
			}
			if !status.Authorized {
				return fmt.Errorf("%w: not authorized", ErrInvalidSession)
			}
			return fn(ctx, client.API())
		})
	}
}

// SessionPath is the session file for name inside dir.
func SessionPath(dir, name string) string {
	return filepath.Join(dir, name+SessionExt)
}

// ListSessions returns the names of all session files in dir, sorted.
func ListSessions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("telegram: list sessions: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SessionExt) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), SessionExt)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
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
