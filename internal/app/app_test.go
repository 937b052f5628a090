package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/config"
	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/forecast"
	"github.com/couchcryptid/waterwatch-service/internal/mask"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
)

const ponds = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"uniqID":101,"Nom":"Mare de Widou"},
   "geometry":{"type":"Polygon","coordinates":[[[-15.0,15.0],[-14.99,15.0],[-14.99,15.01],[-15.0,15.01],[-15.0,15.0]]]}}]}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ponds.geojson")
	require.NoError(t, os.WriteFile(path, []byte(ponds), 0o600))
	return &config.Config{
		BackendURL:          "http://127.0.0.1:1",
		BackendToken:        "t",
		BackendCacheSize:    8,
		InventoryPath:       path,
		ClassifyConcurrency: 2,
		MaxCloudCover:       75,
		Mask:                mask.DefaultConfig(),
		Forecast:            forecast.DefaultParams(),
	}
}

func TestBuild(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc, closePublisher, err := Build(testConfig(t), slog.Default(), metrics)
	require.NoError(t, err)
	require.NotNil(t, closePublisher)
	assert.NoError(t, closePublisher())

	list := svc.ListFeatures(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "101", list[0].FeatureID)

	assert.Error(t, svc.CheckReadiness(context.Background()), "not ready before the first classification")
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PublishEnabled), 0)
}

func TestBuild_KafkaEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.KafkaEnabled = true
	cfg.KafkaBrokers = []string{"127.0.0.1:1"}
	cfg.KafkaClassificationTopic = "pond-classifications"

	metrics := observability.NewMetricsForTesting()
	_, closePublisher, err := Build(cfg, slog.Default(), metrics)
	require.NoError(t, err)
	assert.NoError(t, closePublisher())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishEnabled), 0)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("missing inventory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.InventoryPath = filepath.Join(t.TempDir(), "absent.geojson")
		_, _, err := Build(cfg, slog.Default(), observability.NewMetricsForTesting())
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
	})
	t.Run("bad forecast parameters", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Forecast.K = 2
		_, _, err := Build(cfg, slog.Default(), observability.NewMetricsForTesting())
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
	})
	t.Run("bad cloud cover", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.MaxCloudCover = 150
		_, _, err := Build(cfg, slog.Default(), observability.NewMetricsForTesting())
		assert.True(t, errors.Is(err, domain.ErrConfiguration))
	})
}
