package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
)

// inbox collects delivered messages for assertions
type inbox struct {
	mu   sync.Mutex
	msgs []string
}

func (i *inbox) handle(data []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.msgs = append(i.msgs, string(data))
}

func (i *inbox) all() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.msgs...)
}

func newTestTransport(t *testing.T, url, sessionID string) (*StreamableHTTPTransport, *inbox) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Listener.RetryDelay = 10 * time.Millisecond
	tr := NewStreamableHTTPTransport(cfg, logging.NewNop())
	box := &inbox{}
	tr.SetMessageHandler(box.handle)
	require.NoError(t, tr.Open(context.Background(), url, sessionID))
	t.Cleanup(func() { tr.Close() })
	return tr, box
}

func TestSendJSONReply(t *testing.T) {
	var gotAccept, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotVersion = r.Header.Get(HeaderProtocolVersion)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":"1","method":"ping"}`, string(body))

		w.Header().Set(HeaderSessionID, "sess-42")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"1","result":{}}`)
	}))
	defer srv.Close()

	tr, box := newTestTransport(t, srv.URL, "")
	tr.SetProtocolVersion("2025-06-18")

	err := tr.Send(context.Background(), map[string]string{"jsonrpc": "2.0", "id": "1", "method": "ping"})
	require.NoError(t, err)

	assert.Equal(t, "application/json, text/event-stream", gotAccept)
	assert.Equal(t, "2025-06-18", gotVersion)
	assert.Equal(t, "sess-42", tr.SessionID())
	assert.Equal(t, []string{`{"jsonrpc":"2.0","id":"1","result":{}}`}, box.all())
}

func TestSendSSEReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "id: 1\ndata:\n\n")
		fmt.Fprint(w, "event: ping\ndata: ignored\n\n")
		fmt.Fprint(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/progress\"}\n\n")
		fmt.Fprint(w, "data: {\"jsonrpc\":\"2.0\",\"id\":\"7\",\"result\":{}}\n\n")
	}))
	defer srv.Close()

	tr, box := newTestTransport(t, srv.URL, "")
	require.NoError(t, tr.Send(context.Background(), map[string]string{"method": "tools/call"}))

	require.Eventually(t, func() bool { return len(box.all()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := box.all()
	assert.Contains(t, msgs[0], "notifications/progress")
	assert.Contains(t, msgs[1], `"id":"7"`)
}

func TestSendAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr, box := newTestTransport(t, srv.URL, "")
	require.NoError(t, tr.Send(context.Background(), map[string]string{"method": "notifications/initialized"}))
	assert.Empty(t, box.all())
}

func TestSendCarriesSessionHeader(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get(HeaderSessionID))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL, "resumed-id")
	require.NoError(t, tr.Send(context.Background(), map[string]string{"method": "ping"}))
	assert.Equal(t, "resumed-id", got.Load())
}

func TestSendSessionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL, "stale")
	err := tr.Send(context.Background(), map[string]string{"method": "ping"})
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeSessionInvalid))
	assert.True(t, mcperrors.IsConnectionFatal(err))
}

func TestSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL, "")
	err := tr.Send(context.Background(), map[string]string{"method": "ping"})
	require.Error(t, err)
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryTransport))
}

func TestSendCallerCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr, _ := newTestTransport(t, srv.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tr.Send(ctx, map[string]string{"method": "ping"})
	require.Error(t, err)
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryCancelled))
}

func TestOpenRejectsBadScheme(t *testing.T) {
	tr := NewStreamableHTTPTransport(DefaultConfig(), logging.NewNop())
	defer tr.Close()

	err := tr.Open(context.Background(), "ftp://example.com/mcp", "")
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionFailed))
}

func TestSendAfterClose(t *testing.T) {
	tr := NewStreamableHTTPTransport(DefaultConfig(), logging.NewNop())
	require.NoError(t, tr.Open(context.Background(), "http://127.0.0.1:1/mcp", ""))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	err := tr.Send(context.Background(), map[string]string{"method": "ping"})
	assert.Error(t, err)
}

func TestTerminateSendsDelete(t *testing.T) {
	var method, session string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		session = r.Header.Get(HeaderSessionID)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL, "sess-9")
	require.NoError(t, tr.Terminate(context.Background()))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "sess-9", session)
}

func TestTerminateWithoutSession(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL, "")
	require.NoError(t, tr.Terminate(context.Background()))
	assert.False(t, called)
}

func TestListenNotOffered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL, "sess")
	assert.NoError(t, tr.Listen(context.Background()))
}

func TestListenDeliversAndResumes(t *testing.T) {
	var calls atomic.Int32
	var resumedFrom atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		if calls.Add(1) == 1 {
			fmt.Fprint(w, "id: ev-1\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/tools/list_changed\"}\n\n")
			return
		}
		resumedFrom.Store(r.Header.Get(HeaderLastEventID))
		fmt.Fprint(w, "id: ev-2\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"notifications/prompts/list_changed\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	tr, box := newTestTransport(t, srv.URL, "sess")
	defer tr.Close()
	require.NoError(t, tr.Listen(context.Background()))

	require.Eventually(t, func() bool { return len(box.all()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "ev-1", resumedFrom.Load())
}

func TestListenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, _ := newTestTransport(t, srv.URL, "sess")
	failures := make(chan error, 1)
	tr.SetErrorHandler(func(err error) { failures <- err })
	require.NoError(t, tr.Listen(context.Background()))

	select {
	case err := <-failures:
		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionLost))
	case <-time.After(2 * time.Second):
		t.Fatal("listener failure was not reported")
	}
}
