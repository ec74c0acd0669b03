// Package catalog owns the per-origin metadata state: it coordinates
// refreshes against the remote metadata api, falls back to the local cache
// when the remote is unavailable, and serves search and template resolution
// from the snapshot it currently holds.
package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"github.com/openmetalab/metasync/internal/pkg/application/subscriptions"
	"github.com/openmetalab/metasync/pkg/metadata/cache"
	"github.com/openmetalab/metasync/pkg/metadata/client"
	"github.com/openmetalab/metasync/pkg/metadata/errors"
	"github.com/openmetalab/metasync/pkg/metadata/index"
	"github.com/openmetalab/metasync/pkg/metadata/resolve"
	"github.com/openmetalab/metasync/pkg/metadata/search"
	"github.com/openmetalab/metasync/pkg/metadata/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Catalog interface {
	Refresh(ctx context.Context, originKey string) error
	Search(ctx context.Context, originKey string, params search.Params) (search.Result, error)
	ResolveTemplate(ctx context.Context, originKey string, payload any) (any, []resolve.Gap, error)
	TruncateClass(ctx context.Context, originKey string, classID int64) (*types.TruncateResult, error)
	Status(ctx context.Context, originKey string) (Status, error)
}

// Status backs the cache status banner that consumers display.
type Status struct {
	HasData   bool      `json:"hasData"`
	FromCache bool      `json:"fromCache"`
	Timestamp time.Time `json:"timestamp"`
}

var tracer = otel.Tracer("metasync/catalog")

const TraceAttributeOriginKey string = "origin-key"

type ClientFactory func(cfg OriginConfig) client.MetadataClient

type Option func(*catalogApp)

func WithClientFactory(factory ClientFactory) Option {
	return func(c *catalogApp) {
		c.newClient = factory
	}
}

func WithNotifier(n subscriptions.Notifier) Option {
	return func(c *catalogApp) {
		c.notifier = n
	}
}

func New(ctx context.Context, cfg *Config, store *cache.Store, options ...Option) (Catalog, error) {
	app := &catalogApp{
		store:   store,
		origins: make(map[string]OriginConfig, len(cfg.Origins)),
		state:   make(map[string]*originState, len(cfg.Origins)),
		newClient: func(cfg OriginConfig) client.MetadataClient {
			return client.NewMetadataClient(cfg.Endpoint, client.Token(cfg.Token))
		},
	}

	for _, option := range options {
		option(app)
	}

	for _, origin := range cfg.Origins {
		app.origins[origin.Key] = origin
	}

	return app, nil
}

type originState struct {
	snapshot   *types.Snapshot
	maps       index.Maps
	fromCache  bool
	generation uint64
}

type catalogApp struct {
	store     *cache.Store
	notifier  subscriptions.Notifier
	newClient ClientFactory

	origins map[string]OriginConfig

	mu    sync.RWMutex
	state map[string]*originState

	// monotonically increasing refresh generation; commit rejects results
	// from refreshes that were overtaken by a newer one
	generation atomic.Uint64
}

func (c *catalogApp) Refresh(ctx context.Context, originKey string) error {
	var err error

	origin, ok := c.origins[originKey]
	if !ok {
		return errors.NewUnknownOriginError(originKey)
	}

	ctx, span := tracer.Start(ctx, "refresh-metadata",
		trace.WithAttributes(attribute.String(TraceAttributeOriginKey, originKey)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx).With("origin", originKey, "run_id", uuid.NewString())
	ctx = logging.NewContextWithLogger(ctx, log)

	token := c.generation.Add(1)

	mdClient := c.newClient(origin)

	var attributes []types.Attribute
	var sets []types.Set

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var groupErr error
		attributes, groupErr = mdClient.Attributes(gctx)
		return groupErr
	})
	g.Go(func() error {
		var groupErr error
		sets, groupErr = mdClient.Classes(gctx)
		return groupErr
	})

	if fetchErr := g.Wait(); fetchErr != nil {
		log.Error("metadata fetch failed, trying the local cache", "err", fetchErr.Error())

		cached, cacheErr := c.store.Snapshot(ctx, originKey)
		if cacheErr != nil {
			log.Warn("no usable cached snapshot", "err", cacheErr.Error())
			err = fetchErr
			return err
		}

		if c.commit(originKey, token, cached, true) {
			log.Info("serving cached snapshot", "taken_at", cached.Timestamp)
		}

		return nil
	}

	classIDs := make([]int64, 0, len(sets))
	for _, set := range sets {
		classIDs = append(classIDs, set.ID)
	}

	linkTypes, _ := mdClient.LinkTypesForClasses(ctx, classIDs)

	snapshot := &types.Snapshot{
		OriginKey:  originKey,
		Attributes: attributes,
		Sets:       sets,
		LinkTypes:  linkTypes,
		Timestamp:  time.Now().UTC(),
	}

	if !c.commit(originKey, token, snapshot, false) {
		log.Warn("discarding refresh result, a newer refresh already committed")
		return nil
	}

	// persistence is best effort; the snapshot stays valid in memory even
	// when the write fails
	if putErr := c.store.Put(ctx, snapshot); putErr != nil {
		log.Warn("failed to persist snapshot", "err", putErr.Error())
	}

	if c.notifier != nil {
		c.notifier.SnapshotRefreshed(ctx, snapshot, false)
	}

	log.Info("snapshot refreshed",
		"attributes", len(attributes), "sets", len(sets), "link_types", len(linkTypes),
	)

	return nil
}

func (c *catalogApp) commit(originKey string, token uint64, snapshot *types.Snapshot, fromCache bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.state[originKey]; ok && current.generation >= token {
		return false
	}

	c.state[originKey] = &originState{
		snapshot:   snapshot,
		maps:       index.Build(snapshot),
		fromCache:  fromCache,
		generation: token,
	}

	return true
}

// currentState returns the active state for an origin, loading the last
// persisted snapshot on first access if no refresh has happened yet.
func (c *catalogApp) currentState(ctx context.Context, originKey string) (*originState, error) {
	if _, ok := c.origins[originKey]; !ok {
		return nil, errors.NewUnknownOriginError(originKey)
	}

	c.mu.RLock()
	state, ok := c.state[originKey]
	c.mu.RUnlock()

	if ok {
		return state, nil
	}

	cached, err := c.store.Snapshot(ctx, originKey)
	if err != nil {
		return nil, errors.NewNotFoundError("no metadata available for origin " + originKey)
	}

	token := c.generation.Add(1)
	c.commit(originKey, token, cached, true)

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state[originKey], nil
}

func (c *catalogApp) Search(ctx context.Context, originKey string, params search.Params) (search.Result, error) {
	state, err := c.currentState(ctx, originKey)
	if err != nil {
		return search.Result{}, err
	}

	return search.Search(state.snapshot, state.maps, params), nil
}

func (c *catalogApp) ResolveTemplate(ctx context.Context, originKey string, payload any) (any, []resolve.Gap, error) {
	state, err := c.currentState(ctx, originKey)
	if err != nil {
		return nil, nil, err
	}

	resolved, gaps := resolve.Resolve(payload, state.maps)
	return resolved, gaps, nil
}

func (c *catalogApp) TruncateClass(ctx context.Context, originKey string, classID int64) (*types.TruncateResult, error) {
	origin, ok := c.origins[originKey]
	if !ok {
		return nil, errors.NewUnknownOriginError(originKey)
	}

	result, err := c.newClient(origin).TruncateClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	// the truncated class may have changed shape on the server; refresh
	// before returning so the next search sees current metadata
	if refreshErr := c.Refresh(ctx, originKey); refreshErr != nil {
		logging.GetFromContext(ctx).Warn("refresh after truncate failed", "origin", originKey, "err", refreshErr.Error())
	}

	return result, nil
}

func (c *catalogApp) Status(ctx context.Context, originKey string) (Status, error) {
	if _, ok := c.origins[originKey]; !ok {
		return Status{}, errors.NewUnknownOriginError(originKey)
	}

	c.mu.RLock()
	state, ok := c.state[originKey]
	c.mu.RUnlock()

	if !ok {
		return Status{}, nil
	}

	return Status{
		HasData:   true,
		FromCache: state.fromCache,
		Timestamp: state.snapshot.Timestamp,
	}, nil
}
