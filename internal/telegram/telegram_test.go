package telegram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	resolveErrs []error
	resolved    map[string]*tg.ContactsResolvedPeer
	webViewURL  string
	selfErr     error

	resolveCalls int
	webView      *tg.MessagesRequestAppWebViewRequest
	joined       []int64
	left         []int64
}

func (f *fakeAPI) ContactsResolveUsername(_ context.Context, req *tg.ContactsResolveUsernameRequest) (*tg.ContactsResolvedPeer, error) {
	f.resolveCalls++
	if len(f.resolveErrs) > 0 {
		err := f.resolveErrs[0]
		f.resolveErrs = f.resolveErrs[1:]
		return nil, err
	}
	res, ok := f.resolved[req.Username]
	if !ok {
		return nil, tgerr.New(400, "USERNAME_NOT_OCCUPIED")
	}
	return res, nil
}

func (f *fakeAPI) MessagesRequestAppWebView(_ context.Context, req *tg.MessagesRequestAppWebViewRequest) (*tg.WebViewResultURL, error) {
	f.webView = req
	return &tg.WebViewResultURL{URL: f.webViewURL}, nil
}

func (f *fakeAPI) UsersGetUsers(context.Context, []tg.InputUserClass) ([]tg.UserClass, error) {
	if f.selfErr != nil {
		return nil, f.selfErr
	}
	return []tg.UserClass{&tg.User{ID: 42, FirstName: "Ann", LastName: "Lee", Username: "annlee"}}, nil
}

func (f *fakeAPI) ChannelsJoinChannel(_ context.Context, ch tg.InputChannelClass) (tg.UpdatesClass, error) {
	f.joined = append(f.joined, ch.(*tg.InputChannel).ChannelID)
	return &tg.Updates{}, nil
}

func (f *fakeAPI) ChannelsLeaveChannel(_ context.Context, ch tg.InputChannelClass) (tg.UpdatesClass, error) {
	f.left = append(f.left, ch.(*tg.InputChannel).ChannelID)
	return &tg.Updates{}, nil
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		resolved: map[string]*tg.ContactsResolvedPeer{
			"catsgang_bot": {
				Peer:  &tg.PeerUser{UserID: 7},
				Users: []tg.UserClass{&tg.User{ID: 7, AccessHash: 700, Bot: true}},
			},
			"catsnews": {
				Peer:  &tg.PeerChannel{ChannelID: 9},
				Chats: []tg.ChatClass{&tg.Channel{ID: 9, AccessHash: 900}},
			},
		},
		webViewURL: "https://app.cats.example/#tgWebAppData=query_id%3DAAH%26user%3D%257B%2522id%2522%253A42%257D%26hash%3Dabc&tgWebAppVersion=7.0&tgWebAppPlatform=android",
	}
}

// testSession counts connections and records sleeps instead of waiting.
func testSession(t *testing.T, api API, connects *int, sleeps *[]time.Duration) *Session {
	t.Helper()
	s := newSession("alice", zaptest.NewLogger(t), func(ctx context.Context, fn func(ctx context.Context, api API) error) error {
		*connects++
		return fn(ctx, api)
	})
	s.sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return s
}

func TestWebAppData(t *testing.T) {
	api := newFakeAPI()
	var connects int
	var sleeps []time.Duration
	s := testSession(t, api, &connects, &sleeps)

	got, err := s.WebAppData(context.Background(), WebAppRequest{Bot: "@catsgang_bot", ShortName: "join", StartParam: "ref123"})
	require.NoError(t, err)

	assert.Equal(t, `query_id=AAH&user=%7B%22id%22%3A42%7D&hash=abc`, got.Data)
	assert.Equal(t, Profile{ID: 42, FirstName: "Ann", LastName: "Lee", Username: "annlee"}, got.Profile)
	assert.Equal(t, 1, connects)

	require.NotNil(t, api.webView)
	assert.True(t, api.webView.WriteAllowed)
	assert.Equal(t, DefaultPlatform, api.webView.Platform)
	assert.Equal(t, "ref123", api.webView.StartParam)
	app, ok := api.webView.App.(*tg.InputBotAppShortName)
	require.True(t, ok)
	assert.Equal(t, "join", app.ShortName)
	assert.Equal(t, &tg.InputUser{UserID: 7, AccessHash: 700}, app.BotID)
	assert.Equal(t, &tg.InputPeerUser{UserID: 7, AccessHash: 700}, api.webView.Peer)
}

func TestWebAppDataSleepsThroughFloodWait(t *testing.T) {
	api := newFakeAPI()
	api.resolveErrs = []error{tgerr.New(420, "FLOOD_WAIT_5"), tgerr.New(420, "FLOOD_WAIT_1")}
	var connects int
	var sleeps []time.Duration
	s := testSession(t, api, &connects, &sleeps)

	_, err := s.WebAppData(context.Background(), WebAppRequest{Bot: "catsgang_bot", ShortName: "join"})
	require.NoError(t, err)
	assert.Equal(t, 3, api.resolveCalls)
	assert.Equal(t, []time.Duration{8 * time.Second, 4 * time.Second}, sleeps)
}

func TestWebAppDataFloodWaitCancelled(t *testing.T) {
	api := newFakeAPI()
	api.resolveErrs = []error{tgerr.New(420, "FLOOD_WAIT_100")}
	s := newSession("alice", zaptest.NewLogger(t), func(ctx context.Context, fn func(ctx context.Context, api API) error) error {
		return fn(ctx, api)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.WebAppData(ctx, WebAppRequest{Bot: "catsgang_bot", ShortName: "join"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWebAppDataProfileFailureIsNotFatal(t *testing.T) {
	api := newFakeAPI()
	api.selfErr = errors.New("boom")
	var connects int
	var sleeps []time.Duration
	s := testSession(t, api, &connects, &sleeps)

	got, err := s.WebAppData(context.Background(), WebAppRequest{Bot: "catsgang_bot", ShortName: "join"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.Data)
	assert.Zero(t, got.Profile)
}

func TestWebAppDataInvalidSession(t *testing.T) {
	s := newSession("alice", zaptest.NewLogger(t), func(context.Context, func(context.Context, API) error) error {
		return tgerr.New(401, "AUTH_KEY_UNREGISTERED")
	})
	_, err := s.WebAppData(context.Background(), WebAppRequest{Bot: "catsgang_bot", ShortName: "join"})
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestDoReusesLiveConnection(t *testing.T) {
	api := newFakeAPI()
	var connects int
	var sleeps []time.Duration
	s := testSession(t, api, &connects, &sleeps)

	err := s.Do(context.Background(), func(ctx context.Context, _ API) error {
		require.NoError(t, s.JoinChannel(ctx, "catsnews"))
		require.NoError(t, s.LeaveChannel(ctx, "catsnews"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, connects)
	assert.Equal(t, []int64{9}, api.joined)
	assert.Equal(t, []int64{9}, api.left)

	require.NoError(t, s.JoinChannel(context.Background(), "catsnews"))
	assert.Equal(t, 2, connects)
}

func TestJoinChannelRejectsUsers(t *testing.T) {
	api := newFakeAPI()
	var connects int
	var sleeps []time.Duration
	s := testSession(t, api, &connects, &sleeps)

	err := s.JoinChannel(context.Background(), "catsgang_bot")
	assert.Error(t, err)
	assert.Empty(t, api.joined)
}

func TestDoPassesThroughOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	s := newSession("alice", zaptest.NewLogger(t), func(ctx context.Context, fn func(context.Context, API) error) error {
		return fn(ctx, newFakeAPI())
	})
	err := s.Do(context.Background(), func(context.Context, API) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidSession)
}

func TestExtractWebAppData(t *testing.T) {
	got, err := ExtractWebAppData("https://x/#tgWebAppData=a%3D1%26b%3D2&tgWebAppVersion=6.9")
	require.NoError(t, err)
	assert.Equal(t, "a=1&b=2", got)

	got, err = ExtractWebAppData("https://x/#tgWebAppData=user%3Dx+y")
	require.NoError(t, err)
	assert.Equal(t, "user=x+y", got)

	_, err = ExtractWebAppData("https://x/#tgWebAppVersion=6.9")
	assert.Error(t, err)
}

func TestExtractWebAppDataKeepsMalformedEscapes(t *testing.T) {
	cases := map[string]string{
		"https://x/#tgWebAppData=a%3D100%25%zz&tgWebAppVersion=7.0": "a=100%%zz",
		"https://x/#tgWebAppData=name%3DCat%2":                      "name=Cat%2",
		"https://x/#tgWebAppData=%E2%9C%93%":                        "\u2713%",
	}
	for in, want := range cases {
		got, err := ExtractWebAppData(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestListSessions(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bob.session", "alice.session", "notes.txt", ".session"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.session"), 0o700))

	got, err := ListSessions(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got)

	_, err = ListSessions(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestPrompter(t *testing.T) {
	var out strings.Builder
	p := NewPrompter(strings.NewReader("+10000000000\n12345\nsecret"), &out)

	phone, err := p.Phone(context.Background())
	require.NoError(t, err)
	code, err := p.Code(context.Background(), nil)
	require.NoError(t, err)
	pass, err := p.Password(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "+10000000000", phone)
	assert.Equal(t, "12345", code)
	assert.Equal(t, "secret", pass)
	assert.Contains(t, out.String(), "Code: ")

	p.PhoneNumber = "+1999"
	phone, err = p.Phone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "+1999", phone)
}
