// Package app assembles the watch service from configuration. Both the
// server and the one-shot forecast command start from here.
package app

import (
	"log/slog"

	"github.com/couchcryptid/waterwatch-service/internal/adapter/backend"
	"github.com/couchcryptid/waterwatch-service/internal/adapter/inventory"
	kafkaadapter "github.com/couchcryptid/waterwatch-service/internal/adapter/kafka"
	"github.com/couchcryptid/waterwatch-service/internal/classify"
	"github.com/couchcryptid/waterwatch-service/internal/config"
	"github.com/couchcryptid/waterwatch-service/internal/forecast"
	"github.com/couchcryptid/waterwatch-service/internal/harmonize"
	"github.com/couchcryptid/waterwatch-service/internal/mask"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
	"github.com/couchcryptid/waterwatch-service/internal/watch"
)

// Build wires the collaborators of the watch service from cfg. The returned
// func closes the snapshot publisher, if any, and is never nil.
func Build(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*watch.Service, func() error, error) {
	inv, err := inventory.Load(inventory.Paths{
		Ponds:           cfg.InventoryPath,
		Regions:         cfg.RegionsPath,
		Communes:        cfg.CommunesPath,
		Arrondissements: cfg.ArrondissementsPath,
		Villages:        cfg.VillagesPath,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("inventory loaded", "ponds", inv.Len(), "path", cfg.InventoryPath)

	client := backend.NewClient(cfg.BackendURL, cfg.BackendToken, backend.Options{
		Timeout:      cfg.BackendTimeout,
		MaxRetries:   cfg.BackendMaxRetries,
		RetryInitial: cfg.BackendRetryInitial,
		RetryMax:     cfg.BackendRetryMax,
	}, logger, metrics)
	aux := backend.NewCachedAux(client, cfg.BackendCacheSize, metrics)

	hcfg := harmonize.DefaultConfig()
	hcfg.MaxCloudCover = cfg.MaxCloudCover
	if err := hcfg.Validate(); err != nil {
		return nil, nil, err
	}
	masker := mask.NewEngine(cfg.Mask, aux, logger)
	stacks := harmonize.New(client, masker, hcfg, logger, metrics)

	ccfg := classify.DefaultConfig()
	if err := ccfg.Validate(); err != nil {
		return nil, nil, err
	}

	engine, err := forecast.NewEngine(cfg.Forecast, aux, client, logger)
	if err != nil {
		return nil, nil, err
	}

	studyArea := cfg.StudyArea
	if studyArea.IsEmpty() {
		studyArea = inv.Bound()
	}

	deps := watch.Deps{
		Stacks:     stacks,
		Classifier: classify.New(ccfg, logger),
		Forecaster: engine,
		Inventory:  inv,
		Tiles:      client,
		Logger:     logger,
		Metrics:    metrics,
	}
	closePublisher := func() error { return nil }
	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		deps.Publisher = publisher
		closePublisher = publisher.Close
		metrics.PublishEnabled.Set(1)
		logger.Info("classification publishing enabled", "topic", cfg.KafkaClassificationTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("classification publishing disabled")
	}

	svc := watch.New(watch.Config{
		StudyArea:        studyArea,
		HistoryStart:     cfg.HistoryStart,
		ClassifyLookback: cfg.ClassifyLookback,
		Concurrency:      cfg.ClassifyConcurrency,
		RequestTimeout:   cfg.RequestTimeout,
	}, deps)
	return svc, closePublisher, nil
}
