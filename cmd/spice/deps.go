package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-capture/internal/config"
	"github.com/Veraticus/spice-capture/internal/engine"
	"github.com/Veraticus/spice-capture/internal/extractor"
	"github.com/Veraticus/spice-capture/internal/finish"
	"github.com/Veraticus/spice-capture/internal/intent"
	"github.com/Veraticus/spice-capture/internal/learner"
	"github.com/Veraticus/spice-capture/internal/llm"
	"github.com/Veraticus/spice-capture/internal/service"
	"github.com/Veraticus/spice-capture/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// envKeyReplacer maps nested keys such as llm.api_key onto SPICE_LLM_API_KEY.
var envKeyReplacer = strings.NewReplacer(".", "_")

// app holds the wired components for a command.
type app struct {
	cfg         *config.Config
	store       *storage.SQLiteStorage
	checkpoints service.CheckpointStore
	engine      *engine.Engine
	learner     *learner.Learner
	redis       *redis.Client
}

// openStorage loads config and opens the migrated database.
func openStorage(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	a := &app{cfg: cfg, store: store, checkpoints: store}
	if cfg.Checkpoint.Backend == "redis" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Address, err)
		}
		a.checkpoints = storage.NewRedisCheckpointStore(a.redis, cfg.Redis.KeyPrefix)
	}
	return a, nil
}

// openApp opens storage and builds the capture engine.
func openApp(ctx context.Context) (*app, error) {
	a, err := openStorage(ctx)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	logger := slog.Default()

	assistant, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
		CacheTTL:    cfg.LLM.CacheTTL,
		RateLimit:   cfg.LLM.RateLimit,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, logger.With("component", "llm"))
	if err != nil {
		a.close()
		return nil, err
	}

	policy, err := finish.ParseAdvicePolicy(cfg.Finish.AdvicePolicy)
	if err != nil {
		a.close()
		return nil, err
	}

	a.learner = learner.New(a.store, logger.With("component", "learner"), learner.DefaultTimeout)

	a.engine, err = engine.New(engine.Deps{
		Categories:  a.store,
		Records:     a.store,
		Checkpoints: a.checkpoints,
		Extractor:   extractor.New(assistant, a.store, a.store, logger.With("component", "extractor")),
		Classifier:  intent.NewClassifier(assistant, logger.With("component", "intent")),
		Finisher: finish.NewPipeline(
			finish.NewBudgetEvaluator(a.store, cfg.Finish.WarnRatio),
			assistant, policy, logger.With("component", "finish")),
		Learner: a.learner,
		Logger:  logger.With("component", "engine"),
	}, engine.Config{
		DefaultUser:         cfg.Workflow.DefaultUser,
		ConfirmationTimeout: cfg.Workflow.ConfirmationTimeout,
		ExternalTimeout:     cfg.Workflow.ExternalTimeout,
		WriteTimeout:        cfg.Workflow.WriteTimeout,
		ReplayWindow:        cfg.Workflow.ReplayWindow,
		Retention:           cfg.Checkpoint.Retention,
		HistoryLimit:        cfg.Workflow.HistoryLimit,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close waits for background learning and releases connections.
func (a *app) close() {
	if a.learner != nil {
		a.learner.Wait()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

func (a *app) userID() string {
	return a.cfg.Workflow.DefaultUser
}
