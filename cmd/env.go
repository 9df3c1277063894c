package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NeverShitty/chittyfinance-sub000/internal/aggregate"
	"github.com/NeverShitty/chittyfinance-sub000/internal/detect"
	"github.com/NeverShitty/chittyfinance-sub000/internal/fetcher"
	"github.com/NeverShitty/chittyfinance-sub000/internal/resilience"
	"github.com/NeverShitty/chittyfinance-sub000/internal/source"
	"github.com/NeverShitty/chittyfinance-sub000/internal/store"
	"github.com/NeverShitty/chittyfinance-sub000/pkg/anthropic"
	"github.com/NeverShitty/chittyfinance-sub000/pkg/classifier"
)

// env holds the wired application components. Adapters for live providers
// are registered by the embedding application; an empty registry degrades
// every fetch to an empty snapshot.
type env struct {
	store      store.Store
	registry   *source.Registry
	aggregator *aggregate.Aggregator
	detector   *detect.Detector
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	retry := resilience.SourceFetchRetryConfig()
	if cfg.Fetch.MaxRetries > 0 {
		retry.MaxAttempts = cfg.Fetch.MaxRetries
	}

	reg := source.NewRegistry()
	f := fetcher.New(reg, fetcher.Options{
		TTL:        cfg.Cache.TTL(),
		Timeout:    cfg.Fetch.Timeout(),
		RateLimits: cfg.Fetch.RateLimits,
		Retry:      retry,
	})

	thresholds, err := detect.LoadThresholds(cfg.Detect.ThresholdsFile)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "load thresholds")
	}

	var cls classifier.Classifier
	if cfg.Anthropic.Key != "" {
		cls = classifier.NewAnthropic(
			anthropic.NewClient(cfg.Anthropic.Key),
			cfg.Anthropic.Model,
			int64(cfg.Anthropic.MaxTokens),
		)
	} else {
		zap.L().Info("no anthropic key configured, compliance pass disabled")
	}

	return &env{
		store:      st,
		registry:   reg,
		aggregator: aggregate.New(f),
		detector: detect.New(detect.Options{
			Thresholds: &thresholds,
			Classifier: cls,
		}),
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		zap.L().Warn("closing store", zap.Error(err))
	}
}
