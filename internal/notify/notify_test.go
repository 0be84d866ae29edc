package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qtosh1/cats-farmer/internal/cats"
	"github.com/qtosh1/cats-farmer/internal/farmer"
)

type botServer struct {
	mu       sync.Mutex
	messages []string
	chatIDs  []string
}

func (b *botServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Notify","username":"notify_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			b.mu.Lock()
			b.messages = append(b.messages, r.FormValue("text"))
			b.chatIDs = append(b.chatIDs, r.FormValue("chat_id"))
			b.mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"},"text":"ok"}}`)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestNotifier(t *testing.T) (*Notifier, *botServer) {
	t.Helper()
	bs := &botServer{}
	srv := httptest.NewServer(bs.handler(t))
	t.Cleanup(srv.Close)

	n, err := NewWithEndpoint("123:abc", srv.URL+"/bot%s/%s", 5, zaptest.NewLogger(t))
	require.NoError(t, err)
	return n, bs
}

func TestNotifierSendsReports(t *testing.T) {
	n, bs := newTestNotifier(t)
	ctx := context.Background()

	n.StateChanged(ctx, farmer.StateChange{Session: "alice", State: farmer.StateSleeping})
	n.StateChanged(ctx, farmer.StateChange{Session: "alice", State: farmer.StateInvalid, Err: errors.New("revoked")})
	n.TaskCompleted(ctx, farmer.TaskCompletion{Session: "alice", Task: cats.Task{ID: 3, Type: cats.TaskOpenLink, RewardPoints: 100}})
	n.CycleFinished(ctx, farmer.CycleReport{Session: "alice", User: &cats.User{TotalRewards: 900}, TasksDone: 1})

	require.Len(t, bs.messages, 3)
	assert.Equal(t, "alice | Invalid session: revoked", bs.messages[0])
	assert.Equal(t, "alice | Done OPEN_LINK task 3, got 100 points", bs.messages[1])
	assert.Contains(t, bs.messages[2], "Total balance: 900")
	assert.Equal(t, []string{"5", "5", "5"}, bs.chatIDs)
}

func TestNotifierCycleWithoutUserInfo(t *testing.T) {
	n, bs := newTestNotifier(t)

	n.CycleFinished(context.Background(), farmer.CycleReport{Session: "alice", TasksDone: 2})

	require.Len(t, bs.messages, 1)
	assert.Equal(t, "alice | Cycle finished\nTasks done: 2", bs.messages[0])
	assert.NotContains(t, bs.messages[0], "Total balance")
}

func TestNotifierSendFailureIsLogged(t *testing.T) {
	fail := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Notify","username":"notify_bot"}}`)
			return
		}
		fail = true
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	}))
	t.Cleanup(srv.Close)

	n, err := NewWithEndpoint("123:abc", srv.URL+"/bot%s/%s", 5, zaptest.NewLogger(t))
	require.NoError(t, err)
	n.TaskCompleted(context.Background(), farmer.TaskCompletion{Session: "alice"})
	assert.True(t, fail)
}

func TestNewRejectsBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
	}))
	t.Cleanup(srv.Close)

	_, err := NewWithEndpoint("bad", srv.URL+"/bot%s/%s", 5, nil)
	assert.Error(t, err)
}
