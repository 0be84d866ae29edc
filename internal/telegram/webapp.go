package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

const (
	webAppDataMarker    = "tgWebAppData="
	webAppVersionMarker = "&tgWebAppVersion"

	// DefaultPlatform is reported to Telegram when opening the mini-app.
	DefaultPlatform = "android"

	floodWaitPad = 3 * time.Second
)

// WebAppRequest names the mini-app to open.
type WebAppRequest struct {
	Bot        string
	ShortName  string
	StartParam string
	Platform   string
}

// Profile is the account's own Telegram identity.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// WebAppAuth is the outcome of the mini-app auth exchange.
type WebAppAuth struct {
	// Data is the signed init data sent to the backend as "tma <Data>".
	Data    string
	Profile Profile
}

// WebAppData performs the mini-app auth exchange: resolve the bot, request
// the app web view and cut the init data out of the returned URL.
func (s *Session) WebAppData(ctx context.Context, req WebAppRequest) (WebAppAuth, error) {
	if req.Platform == "" {
		req.Platform = DefaultPlatform
	}

	var out WebAppAuth
	err := s.Do(ctx, func(ctx context.Context, api API) error {
		resolved, err := s.resolve(ctx, api, req.Bot)
		if err != nil {
			return err
		}
		bot, peer, err := resolvedUser(resolved)
		if err != nil {
			return err
		}

		view, err := api.MessagesRequestAppWebView(ctx, &tg.MessagesRequestAppWebViewRequest{
			WriteAllowed: true,
			Peer:         peer,
			App:          &tg.InputBotAppShortName{BotID: bot, ShortName: req.ShortName},
			StartParam:   req.StartParam,
			Platform:     req.Platform,
		})
		if err != nil {
			return fmt.Errorf("request app web view: %w", err)
		}

		out.Data, err = ExtractWebAppData(view.URL)
		if err != nil {
			return err
		}

		profile, err := self(ctx, api)
		if err != nil {
			s.logger.Warn("Failed to fetch own profile", zap.Error(err))
		}
		out.Profile = profile
		return nil
	})
	if err != nil {
		return WebAppAuth{}, err
	}
	return out, nil
}

// ExtractWebAppData returns the unescaped init data carried in a mini-app URL.
func ExtractWebAppData(rawURL string) (string, error) {
	i := strings.Index(rawURL, webAppDataMarker)
	if i < 0 {
		return "", errors.New("telegram: web app url has no init data")
	}
	data := rawURL[i+len(webAppDataMarker):]
	if j := strings.Index(data, webAppVersionMarker); j >= 0 {
		data = data[:j]
	}
	return unquote(data), nil
}

// unquote decodes percent escapes and keeps malformed ones as literal text.
func unquote(s string) string {
	if out, err := url.PathUnescape(s); err == nil {
		return out
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && (i+2 >= len(s) || !isHex(s[i+1]) || !isHex(s[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(s[i])
	}
	out, _ := url.PathUnescape(b.String())
	return out
}

func isHex(c byte) bool {
	return strings.IndexByte("0123456789abcdefABCDEF", c) >= 0
}

// resolve looks up a public username, sleeping through FLOOD_WAIT until ctx ends.
func (s *Session) resolve(ctx context.Context, api API, username string) (*tg.ContactsResolvedPeer, error) {
	username = strings.TrimPrefix(username, "@")
	for {
		res, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
		if err == nil {
			return res, nil
		}
		d, ok := tgerr.AsFloodWait(err)
		if !ok {
			return nil, fmt.Errorf("resolve @%s: %w", username, err)
		}
		s.logger.Warn("FloodWait", zap.String("username", username), zap.Duration("wait", d))
		s.logger.Info("Sleep", zap.Duration("duration", d+floodWaitPad))
		if err := s.sleep(ctx, d+floodWaitPad); err != nil {
			return nil, err
		}
	}
}

func resolvedUser(res *tg.ContactsResolvedPeer) (*tg.InputUser, *tg.InputPeerUser, error) {
	p, ok := res.Peer.(*tg.PeerUser)
	if !ok {
		return nil, nil, fmt.Errorf("resolved peer %T is not a user", res.Peer)
	}
	for _, u := range res.Users {
		user, ok := u.(*tg.User)
		if !ok || user.ID != p.UserID {
			continue
		}
		return &tg.InputUser{UserID: user.ID, AccessHash: user.AccessHash},
			&tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
	}
	return nil, nil, fmt.Errorf("user %d missing from resolve result", p.UserID)
}

func resolvedChannel(res *tg.ContactsResolvedPeer) (*tg.InputChannel, error) {
	p, ok := res.Peer.(*tg.PeerChannel)
	if !ok {
		return nil, fmt.Errorf("resolved peer %T is not a channel", res.Peer)
	}
	for _, c := range res.Chats {
		ch, ok := c.(*tg.Channel)
		if !ok || ch.ID != p.ChannelID {
			continue
		}
		return &tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
	}
	return nil, fmt.Errorf("channel %d missing from resolve result", p.ChannelID)
}

func self(ctx context.Context, api API) (Profile, error) {
	users, err := api.UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUserSelf{}})
	if err != nil {
		return Profile{}, fmt.Errorf("get self: %w", err)
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			return Profile{
				ID:        user.ID,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Username:  user.Username,
			}, nil
		}
	}
	return Profile{}, errors.New("get self: empty result")
}
