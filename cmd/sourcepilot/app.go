package main

import (
	"context"
	"fmt"
	"path/filepath"

	"sourcepilot/internal/agent"
	"sourcepilot/internal/chat"
	"sourcepilot/internal/config"
	"sourcepilot/internal/llm"
	"sourcepilot/internal/logging"
	"sourcepilot/internal/playbook"
	"sourcepilot/internal/retrieval"
	"sourcepilot/internal/state"
	"sourcepilot/internal/store"
	"sourcepilot/internal/supervisor"
	"sourcepilot/internal/task"
	"sourcepilot/internal/types"
)

// app holds the wired collaborators for one command invocation.
type app struct {
	store   *store.Store
	service *chat.Service
}

// buildApp constructs the full pipeline: store, retriever, narration client,
// task registry, agents, supervisor, and chat service.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dbPath := cfg.Storage.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(cfg.Workspace, dbPath)
	}
	st, err := store.NewStoreWithOptions(dbPath, store.Options{
		BusyTimeout: cfg.Storage.GetBusyTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var narrator types.LLMClient
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		narrator, err = llm.NewClient(ctx, llm.Options{
			APIKey:          cfg.LLM.APIKey,
			Model:           cfg.LLM.Model,
			Timeout:         cfg.LLM.GetTimeout(),
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("creating narration client: %w", err)
		}
	} else {
		narrator = llm.NewStatic()
		logging.LLM("narration disabled, using offline client")
	}

	registry := task.NewRegistry(task.Deps{
		Retriever: retrieval.NewLocalWithOptions(st, retrieval.Options{
			MaxChunks: cfg.Retrieval.MaxChunks,
			CacheTTL:  cfg.Retrieval.GetCacheTTL(),
		}),
		LLM: narrator,
	})
	pb := playbook.New()
	sm := state.NewManager()
	service := chat.NewService(st, sm, supervisor.New(sm, pb), agent.Roster(registry, pb)).
		WithMemoryStore(st).
		WithMemoryBounds(cfg.Memory.MaxEntries, cfg.Memory.MaxDecisions, cfg.Memory.MaxIntents)

	return &app{store: st, service: service}, nil
}

// Close releases the app's resources.
func (a *app) Close() error {
	return a.store.Close()
}

func initLogging(cfg *config.Config) error {
	if err := logging.Initialize(cfg.Workspace, cfg.Logging.Settings()); err != nil {
		return err
	}
	return logging.InitAudit()
}
