package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	mcperrors "github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/errors"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/logging"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/observability"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/pagination"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/protocol"
	"github.com/AbhilashPoshanagari/AI-powered-chatbot/pkg/pubsub"
)

// CatalogKind names one of the server catalogs
type CatalogKind string

const (
	CatalogTools     CatalogKind = "tools"
	CatalogPrompts   CatalogKind = "prompts"
	CatalogResources CatalogKind = "resources"
)

// CatalogKinds lists every catalog in refresh order
var CatalogKinds = []CatalogKind{CatalogTools, CatalogPrompts, CatalogResources}

// CatalogEntry is one tool, prompt or resource as presented to the user
type CatalogEntry struct {
	Kind        CatalogKind
	Name        string
	Title       string
	DisplayName string
	Description string

	// Tools
	InputSchema json.RawMessage
	// Prompts
	Arguments []protocol.PromptArgument
	// Resources
	URI      string
	MimeType string
}

// CatalogError is published when a refresh fails. The previous catalog
// stays in place.
type CatalogError struct {
	Kind CatalogKind
	Err  error
	At   time.Time
}

// DisplayName is the label shown for a catalog entry: the title when the
// server sent one, otherwise the name with underscores turned into spaces.
func DisplayName(name, title string) string {
	if title != "" {
		return title
	}
	return strings.ReplaceAll(name, "_", " ")
}

// requester issues one request and decodes its result
type requester interface {
	Send(ctx context.Context, method string, params, result interface{}) error
}

// catalogCache holds the last successfully fetched catalogs. Each kind is
// refreshed independently and replaced wholesale.
type catalogCache struct {
	logger  logging.Logger
	metrics observability.MetricsProvider

	signals map[CatalogKind]*pubsub.Signal[[]CatalogEntry]
	errors  *pubsub.Topic[CatalogError]

	group singleflight.Group
	// generation is bumped by Reset; refreshes started earlier are discarded
	generation atomic.Uint64
	// versions are bumped by Invalidate; a fetch started under an older
	// version never publishes
	versions  map[CatalogKind]*atomic.Uint64
	publishMu sync.Mutex
}

func newCatalogCache(logger logging.Logger, metrics observability.MetricsProvider) *catalogCache {
	c := &catalogCache{
		logger:   logger.WithFields(logging.Component("catalog")),
		metrics:  metrics,
		signals:  make(map[CatalogKind]*pubsub.Signal[[]CatalogEntry], len(CatalogKinds)),
		errors:   pubsub.NewTopic[CatalogError](pubsub.DefaultBuffer),
		versions: make(map[CatalogKind]*atomic.Uint64, len(CatalogKinds)),
	}
	for _, kind := range CatalogKinds {
		c.signals[kind] = pubsub.NewSignal([]CatalogEntry{})
		c.versions[kind] = new(atomic.Uint64)
	}
	return c
}

func (c *catalogCache) Get(kind CatalogKind) []CatalogEntry {
	s, ok := c.signals[kind]
	if !ok {
		return nil
	}
	return s.Get()
}

// Subscribe replays the current catalog of kind, then every replacement
func (c *catalogCache) Subscribe(ctx context.Context, kind CatalogKind) <-chan []CatalogEntry {
	s, ok := c.signals[kind]
	if !ok {
		ch := make(chan []CatalogEntry)
		close(ch)
		return ch
	}
	return s.Subscribe(ctx)
}

func (c *catalogCache) Errors(ctx context.Context) <-chan CatalogError {
	return c.errors.Subscribe(ctx)
}

// Invalidate marks the server's kind catalog as changed. Refreshes started
// afterwards do not join a fetch already in flight, and that fetch is not
// published.
func (c *catalogCache) Invalidate(kind CatalogKind) {
	if v, ok := c.versions[kind]; ok {
		v.Add(1)
	}
}

// Refresh fetches kind through r and publishes the result. Concurrent
// refreshes of the same kind share one fetch unless the kind was
// invalidated in between.
func (c *catalogCache) Refresh(ctx context.Context, r requester, kind CatalogKind) ([]CatalogEntry, error) {
	signal, ok := c.signals[kind]
	if !ok {
		return nil, mcperrors.InvalidArgument("catalog kind", string(kind))
	}

	gen := c.generation.Load()
	version := c.versions[kind].Load()
	key := fmt.Sprintf("%s/%d/%d", kind, gen, version)

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		entries, err := fetchCatalog(ctx, r, kind)

		c.publishMu.Lock()
		defer c.publishMu.Unlock()

		if c.generation.Load() != gen {
			c.logger.Debug("discarding stale catalog refresh", logging.String("kind", string(kind)))
			return nil, mcperrors.Cancelled("refresh "+string(kind), context.Canceled)
		}
		if c.versions[kind].Load() != version {
			c.logger.Debug("catalog refresh superseded", logging.String("kind", string(kind)))
			return entries, err
		}

		if err != nil {
			c.metrics.RecordCatalogRefresh(ctx, string(kind), "error", time.Since(start), 0)
			refreshErr := mcperrors.CatalogRefreshError(string(kind), err)
			c.logger.Warn("catalog refresh failed", logging.String("kind", string(kind)), logging.ErrorField(err))
			c.errors.Publish(CatalogError{Kind: kind, Err: refreshErr, At: time.Now()})
			return nil, refreshErr
		}

		c.metrics.RecordCatalogRefresh(ctx, string(kind), "success", time.Since(start), len(entries))
		signal.Set(entries)
		c.logger.Debug("catalog refreshed", logging.String("kind", string(kind)), logging.Int("items", len(entries)))
		return entries, nil
	})
	if shared {
		c.logger.Debug("joined in-flight refresh", logging.String("kind", string(kind)))
	}
	if err != nil {
		return nil, err
	}
	return v.([]CatalogEntry), nil
}

// RefreshAll refreshes every catalog concurrently. A failing kind does not
// stop the others; the first error is returned.
func (c *catalogCache) RefreshAll(ctx context.Context, r requester) error {
	var g errgroup.Group
	for _, kind := range CatalogKinds {
		g.Go(func() error {
			_, err := c.Refresh(ctx, r, kind)
			return err
		})
	}
	return g.Wait()
}

// Reset empties every catalog and discards refreshes still in flight
func (c *catalogCache) Reset() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	c.generation.Add(1)
	for _, s := range c.signals {
		s.Set([]CatalogEntry{})
	}
}

func (c *catalogCache) close() {
	for _, s := range c.signals {
		s.Close()
	}
	c.errors.Close()
}

func fetchCatalog(ctx context.Context, r requester, kind CatalogKind) ([]CatalogEntry, error) {
	switch kind {
	case CatalogTools:
		tools, err := pagination.FetchAll(ctx, func(ctx context.Context, cursor string) ([]protocol.Tool, string, error) {
			var res protocol.ListToolsResult
			params := protocol.ListToolsParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
			if err := r.Send(ctx, protocol.MethodListTools, params, &res); err != nil {
				return nil, "", err
			}
			return res.Tools, res.NextCursor, nil
		})
		if err != nil {
			return nil, err
		}
		entries := make([]CatalogEntry, 0, len(tools))
		for _, t := range tools {
			entries = append(entries, CatalogEntry{
				Kind:        CatalogTools,
				Name:        t.Name,
				Title:       t.Title,
				DisplayName: DisplayName(t.Name, t.Title),
				Description: t.Description,
				InputSchema: t.InputSchema,
			})
		}
		return entries, nil

	case CatalogPrompts:
		prompts, err := pagination.FetchAll(ctx, func(ctx context.Context, cursor string) ([]protocol.Prompt, string, error) {
			var res protocol.ListPromptsResult
			params := protocol.ListPromptsParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
			if err := r.Send(ctx, protocol.MethodListPrompts, params, &res); err != nil {
				return nil, "", err
			}
			return res.Prompts, res.NextCursor, nil
		})
		if err != nil {
			return nil, err
		}
		entries := make([]CatalogEntry, 0, len(prompts))
		for _, p := range prompts {
			entries = append(entries, CatalogEntry{
				Kind:        CatalogPrompts,
				Name:        p.Name,
				Title:       p.Title,
				DisplayName: DisplayName(p.Name, p.Title),
				Description: p.Description,
				Arguments:   p.Arguments,
			})
		}
		return entries, nil

	case CatalogResources:
		resources, err := pagination.FetchAll(ctx, func(ctx context.Context, cursor string) ([]protocol.Resource, string, error) {
			var res protocol.ListResourcesResult
			params := protocol.ListResourcesParams{PaginatedParams: protocol.PaginatedParams{Cursor: cursor}}
			if err := r.Send(ctx, protocol.MethodListResources, params, &res); err != nil {
				return nil, "", err
			}
			return res.Resources, res.NextCursor, nil
		})
		if err != nil {
			return nil, err
		}
		entries := make([]CatalogEntry, 0, len(resources))
		for _, res := range resources {
			entries = append(entries, CatalogEntry{
				Kind:        CatalogResources,
				Name:        res.Name,
				Title:       res.Title,
				DisplayName: DisplayName(res.Name, res.Title),
				Description: res.Description,
				URI:         res.URI,
				MimeType:    res.MimeType,
			})
		}
		return entries, nil
	}
	return nil, fmt.Errorf("unknown catalog kind %q", kind)
}
