package config

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

const (
	testBackendURL = "https://compute.example"
	testToken      = "svc-token"
	testInventory  = "/data/ponds.geojson"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_URL", testBackendURL)
	t.Setenv("BACKEND_TOKEN", testToken)
	t.Setenv("INVENTORY_PATH", testInventory)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)

	assert.Equal(t, testBackendURL, cfg.BackendURL)
	assert.Equal(t, testToken, cfg.BackendToken)
	assert.Equal(t, 60*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 3, cfg.BackendMaxRetries)
	assert.Equal(t, 256, cfg.BackendCacheSize)

	assert.Equal(t, testInventory, cfg.InventoryPath)
	assert.Empty(t, cfg.RegionsPath)
	assert.Equal(t, orb.Bound{}, cfg.StudyArea)
	assert.Equal(t, time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), cfg.HistoryStart)
	assert.Equal(t, 30*24*time.Hour, cfg.ClassifyLookback)
	assert.Equal(t, 8, cfg.ClassifyConcurrency)
	assert.Equal(t, 24*time.Hour, cfg.ClassifyInterval)

	assert.InDelta(t, 40, cfg.Mask.CloudProbability, 0)
	assert.InDelta(t, 0.45, cfg.Forecast.K, 1e-12)
	assert.Equal(t, 15, cfg.Forecast.HorizonDays)
	assert.Equal(t, 6*time.Hour, cfg.Forecast.StepOffset)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "pond-classifications", cfg.KafkaClassificationTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BACKEND_MAX_RETRIES", "0")
	t.Setenv("INVENTORY_REGIONS_PATH", "/data/regions.geojson")
	t.Setenv("STUDY_AREA", "-16.5, 14.2, -13.0, 16.6")
	t.Setenv("HISTORY_START", "2019-06-01")
	t.Setenv("CLASSIFY_INTERVAL", "0")
	t.Setenv("CLOUD_PROBABILITY_THRESHOLD", "55")
	t.Setenv("TDOM_ZSCORE", "-1")
	t.Setenv("FORECAST_HORIZON_DAYS", "10")
	t.Setenv("FORECAST_ALPHA", "0.8")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 0, cfg.BackendMaxRetries)
	assert.Equal(t, "/data/regions.geojson", cfg.RegionsPath)
	assert.Equal(t, orb.Bound{Min: orb.Point{-16.5, 14.2}, Max: orb.Point{-13, 16.6}}, cfg.StudyArea)
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), cfg.HistoryStart)
	assert.Zero(t, cfg.ClassifyInterval)
	assert.InDelta(t, 55, cfg.Mask.CloudProbability, 0)
	assert.InDelta(t, -1, cfg.Mask.ZScore, 0)
	assert.Equal(t, 10, cfg.Forecast.HorizonDays)
	assert.InDelta(t, 0.8, cfg.Forecast.Alpha, 0)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Required(t *testing.T) {
	for _, key := range []string{"BACKEND_URL", "BACKEND_TOKEN", "INVENTORY_PATH"} {
		t.Run(key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration))
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"REQUEST_TIMEOUT", "soon"},
		{"BACKEND_TIMEOUT", "0s"},
		{"BACKEND_MAX_RETRIES", "-1"},
		{"BACKEND_CACHE_SIZE", "0"},
		{"STUDY_AREA", "1,2,3"},
		{"STUDY_AREA", "-13,14,-16,16"},
		{"STUDY_AREA", "-16,14,-13,95"},
		{"HISTORY_START", "01/06/2019"},
		{"CLASSIFY_CONCURRENCY", "0"},
		{"CLASSIFY_INTERVAL", "-1h"},
		{"MAX_CLOUD_COVER", "120"},
		{"CLOUD_PROBABILITY_THRESHOLD", "150"},
		{"TDOM_ZSCORE", "0.5"},
		{"FORECAST_HORIZON_DAYS", "17"},
		{"FORECAST_N", "0"},
		{"FORECAST_K", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrConfiguration), "got %v", err)
		})
	}
}

func TestLoad_ReportsEveryBadVariable(t *testing.T) {
	setRequired(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("BACKEND_CACHE_SIZE", "none")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
	assert.Contains(t, err.Error(), "BACKEND_CACHE_SIZE")
}

func TestLoad_RetryBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("BACKEND_RETRY_INITIAL", "20s")
	t.Setenv("BACKEND_RETRY_MAX", "5s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_RETRY_MAX")
}
