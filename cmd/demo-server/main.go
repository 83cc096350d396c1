package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	mem "progresskit/adapters/memory"
	"progresskit/api/httpapi"
	"progresskit/catalog"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/leaderboard"
	"progresskit/realtime"
)

// A self-contained development server: in-memory storage, a small built-in
// activity catalog, and the full REST + WebSocket surface on :8080.
func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchAsync)
	svc := engine.NewProgressService(store, bus)
	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()

	// Forward progress events to WebSocket clients and the leaderboard
	svc.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	svc.Subscribe(core.EventAttemptRecorded, func(ctx context.Context, e core.Event) {
		_ = board.SetXP(ctx, e.LearnerID, e.XPTotal)
	})

	directory := catalog.NewStatic(
		core.Activity{
			ID:    "act-fractions-1",
			Title: "Adding Fractions",
			Slug:  "adding-fractions",
			Module: core.ModuleRef{
				ID:    "mod-fractions",
				Slug:  "fractions",
				Title: "Fractions",
			},
			Standard: core.StandardRef{
				ID:         "std-nf-1",
				Code:       "4.NF.1",
				Competency: "Number and Operations: Fractions",
			},
		},
		core.Activity{
			ID:    "act-decimals-1",
			Title: "Comparing Decimals",
			Slug:  "comparing-decimals",
			Module: core.ModuleRef{
				ID:    "mod-decimals",
				Slug:  "decimals",
				Title: "Decimals",
			},
			Standard: core.StandardRef{
				ID:         "std-nbt-7",
				Code:       "5.NBT.7",
				Competency: "Number and Operations in Base Ten",
			},
		},
	)

	handler := httpapi.NewMux(httpapi.Deps{
		Service:   svc,
		Projector: engine.NewProjector(store),
		Directory: directory,
		Board:     board,
		Hub:       hub,
	}, httpapi.Options{})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
