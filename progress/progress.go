// Package progress is the batteries-included entry point: it assembles the
// engine, projector, and optional integrations behind a small option list.
package progress

import (
	"context"

	mem "progresskit/adapters/memory"
	"progresskit/analytics"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/integrations/webhook"
	"progresskit/leaderboard"
	"progresskit/realtime"
)

// Option configures the progress kit builder.
type Option func(*config)

type config struct {
	store    engine.Store
	mode     engine.DispatchMode
	hub      *realtime.Hub
	hooks    []analytics.Hook
	webhooks *webhook.Sink
	board    leaderboard.Board
	cache    engine.SummaryCache
}

// WithStore sets the persistence adapter.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithAnalytics wires analytics hooks to receive all engine events.
func WithAnalytics(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithWebhooks wires a webhook sink to receive all engine events.
func WithWebhooks(s *webhook.Sink) Option { return func(c *config) { c.webhooks = s } }

// WithLeaderboard keeps a leaderboard in step with learner XP totals.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// WithSummaryCache serves learner summaries through the cache and
// invalidates entries whenever a submission lands.
func WithSummaryCache(cache engine.SummaryCache) Option {
	return func(c *config) { c.cache = cache }
}

// Kit bundles the write-side service with its read-side projector.
type Kit struct {
	Service   *engine.ProgressService
	Projector *engine.Projector
}

// New builds a configured Kit. If not provided, defaults are used:
//   - store: in-memory
//   - dispatch: async
func New(opts ...Option) *Kit {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		cfg.store = mem.New()
	}

	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewProgressService(cfg.store, bus)

	projector := engine.NewProjector(cfg.store)
	if cfg.cache != nil {
		projector = projector.WithCache(cfg.cache)
	}

	if cfg.hub != nil {
		svc.SubscribeAll(func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
	}
	for _, hook := range cfg.hooks {
		h := hook
		svc.SubscribeAll(func(_ context.Context, e core.Event) { h.OnEvent(e) })
	}
	if cfg.webhooks != nil {
		svc.SubscribeAll(func(_ context.Context, e core.Event) { cfg.webhooks.OnEvent(e) })
	}
	if cfg.board != nil {
		// Attempt events carry the post-commit XP total, so the board
		// converges even if an update is dropped.
		svc.Subscribe(core.EventAttemptRecorded, func(ctx context.Context, e core.Event) {
			_ = cfg.board.SetXP(ctx, e.LearnerID, e.XPTotal)
		})
	}
	if cfg.cache != nil {
		svc.Subscribe(core.EventAttemptRecorded, func(ctx context.Context, e core.Event) {
			cfg.cache.Invalidate(ctx, e.LearnerID)
		})
	}

	return &Kit{Service: svc, Projector: projector}
}
