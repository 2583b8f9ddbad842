package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
)

// scriptedRequester answers catalog requests from functions keyed by method
type scriptedRequester struct {
	mu      sync.Mutex
	answers map[string]func(cursor string) (interface{}, error)
	calls   map[string]int
}

func newScriptedRequester() *scriptedRequester {
	return &scriptedRequester{
		answers: make(map[string]func(string) (interface{}, error)),
		calls:   make(map[string]int),
	}
}

func (r *scriptedRequester) on(method string, fn func(cursor string) (interface{}, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers[method] = fn
}

func (r *scriptedRequester) Send(ctx context.Context, method string, params, result interface{}) error {
	r.mu.Lock()
	fn := r.answers[method]
	r.calls[method]++
	r.mu.Unlock()
	if fn == nil {
		return errors.New("unexpected " + method)
	}

	cursor := ""
	switch p := params.(type) {
	case protocol.ListToolsParams:
		cursor = p.Cursor
	case protocol.ListPromptsParams:
		cursor = p.Cursor
	case protocol.ListResourcesParams:
		cursor = p.Cursor
	}

	v, err := fn(cursor)
	if err != nil {
		return err
	}
	resp, err := protocol.NewResponse("1", v)
	if err != nil {
		return err
	}
	return decodeResponse(method, resp, result)
}

func (r *scriptedRequester) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func newTestCatalog() *catalogCache {
	return newCatalogCache(logging.NewNop(), observability.NoopMetricsProvider{})
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "get weather", DisplayName("get_weather", ""))
	assert.Equal(t, "search", DisplayName("search", ""))
	assert.Equal(t, "Weather Lookup", DisplayName("get_weather", "Weather Lookup"))
	assert.Equal(t, "a b c", DisplayName("a_b_c", ""))
}

func TestRefreshFollowsPagination(t *testing.T) {
	r := newScriptedRequester()
	r.on(protocol.MethodListTools, func(cursor string) (interface{}, error) {
		if cursor == "" {
			return protocol.ListToolsResult{
				Tools:           []protocol.Tool{{Name: "get_weather"}},
				PaginatedResult: protocol.PaginatedResult{NextCursor: "page-2"},
			}, nil
		}
		return protocol.ListToolsResult{Tools: []protocol.Tool{{Name: "search", Title: "Web search"}}}, nil
	})

	c := newTestCatalog()
	entries, err := c.Refresh(context.Background(), r, CatalogTools)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "get weather", entries[0].DisplayName)
	assert.Equal(t, "Web search", entries[1].DisplayName)
	assert.Equal(t, CatalogTools, entries[1].Kind)
	assert.Equal(t, entries, c.Get(CatalogTools))
	assert.Equal(t, 2, r.count(protocol.MethodListTools))
}

func TestRefreshFailureKeepsOtherCatalogs(t *testing.T) {
	r := newScriptedRequester()
	r.on(protocol.MethodListTools, func(string) (interface{}, error) {
		return protocol.ListToolsResult{Tools: []protocol.Tool{{Name: "old_tool"}}}, nil
	})
	r.on(protocol.MethodListPrompts, func(string) (interface{}, error) {
		return protocol.ListPromptsResult{Prompts: []protocol.Prompt{{Name: "summarize"}}}, nil
	})
	r.on(protocol.MethodListResources, func(string) (interface{}, error) {
		return protocol.ListResourcesResult{Resources: []protocol.Resource{{Name: "readme", URI: "file:///README.md"}}}, nil
	})

	c := newTestCatalog()
	require.NoError(t, c.RefreshAll(context.Background(), r))
	before := c.Get(CatalogTools)
	require.Len(t, before, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	catalogErrors := c.Errors(ctx)

	r.on(protocol.MethodListTools, func(string) (interface{}, error) {
		return nil, errors.New("boom")
	})
	r.on(protocol.MethodListPrompts, func(string) (interface{}, error) {
		return protocol.ListPromptsResult{Prompts: []protocol.Prompt{{Name: "summarize"}, {Name: "translate"}}}, nil
	})
	r.on(protocol.MethodListResources, func(string) (interface{}, error) {
		return protocol.ListResourcesResult{Resources: []protocol.Resource{}}, nil
	})

	err := c.RefreshAll(context.Background(), r)
	require.Error(t, err)
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryCatalog))

	assert.Equal(t, before, c.Get(CatalogTools), "failed kind keeps its previous value")
	assert.Len(t, c.Get(CatalogPrompts), 2)
	assert.Empty(t, c.Get(CatalogResources))

	select {
	case ce := <-catalogErrors:
		assert.Equal(t, CatalogTools, ce.Kind)
	case <-time.After(time.Second):
		t.Fatal("no catalog error published")
	}
}

func TestRefreshIsSharedWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32

	r := newScriptedRequester()
	r.on(protocol.MethodListResources, func(string) (interface{}, error) {
		started.Add(1)
		<-release
		return protocol.ListResourcesResult{Resources: []protocol.Resource{{Name: "a", URI: "mem://a"}}}, nil
	})

	c := newTestCatalog()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Refresh(context.Background(), r, CatalogResources)
		}()
	}

	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load(), "concurrent refreshes share one fetch")
	close(release)
	wg.Wait()

	assert.Len(t, c.Get(CatalogResources), 1)
}

func TestInvalidateStartsFreshFetch(t *testing.T) {
	var changed atomic.Bool
	var fetches atomic.Int32
	firstRead := make(chan struct{})
	release := make(chan struct{})

	r := newScriptedRequester()
	r.on(protocol.MethodListResources, func(string) (interface{}, error) {
		name := "before"
		if changed.Load() {
			name = "after"
		}
		if fetches.Add(1) == 1 {
			close(firstRead)
			<-release
		}
		return protocol.ListResourcesResult{Resources: []protocol.Resource{{Name: name, URI: "mem://" + name}}}, nil
	})

	c := newTestCatalog()
	first := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), r, CatalogResources)
		first <- err
	}()
	<-firstRead

	changed.Store(true)
	c.Invalidate(CatalogResources)
	entries, err := c.Refresh(context.Background(), r, CatalogResources)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "after", entries[0].Name)

	close(release)
	require.NoError(t, <-first)

	assert.Equal(t, int32(2), fetches.Load())
	current := c.Get(CatalogResources)
	require.Len(t, current, 1)
	assert.Equal(t, "after", current[0].Name, "the superseded fetch must not overwrite the newer catalog")
}

func TestResetDiscardsInFlightRefresh(t *testing.T) {
	release := make(chan struct{})
	r := newScriptedRequester()
	r.on(protocol.MethodListTools, func(string) (interface{}, error) {
		<-release
		return protocol.ListToolsResult{Tools: []protocol.Tool{{Name: "stale"}}}, nil
	})

	c := newTestCatalog()
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), r, CatalogTools)
		done <- err
	}()

	require.Eventually(t, func() bool { return r.count(protocol.MethodListTools) == 1 }, time.Second, 5*time.Millisecond)
	c.Reset()
	close(release)

	err := <-done
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryCancelled))
	assert.Empty(t, c.Get(CatalogTools))
}

func TestSubscribeCatalogReplaysCurrent(t *testing.T) {
	r := newScriptedRequester()
	r.on(protocol.MethodListPrompts, func(string) (interface{}, error) {
		return protocol.ListPromptsResult{Prompts: []protocol.Prompt{{Name: "p"}}}, nil
	})
	c := newTestCatalog()
	_, err := c.Refresh(context.Background(), r, CatalogPrompts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := <-c.Subscribe(ctx, CatalogPrompts)
	assert.Len(t, first, 1)

	_, ok := <-c.Subscribe(ctx, CatalogKind("bogus"))
	assert.False(t, ok)
}
