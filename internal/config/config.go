package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/forecast"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
	"github.com/couchcryptid/waterwatch-service/internal/mask"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	// Compute backend.
	BackendURL          string
	BackendToken        string
	BackendTimeout      time.Duration
	BackendMaxRetries   int
	BackendRetryInitial time.Duration
	BackendRetryMax     time.Duration
	BackendCacheSize    int

	// Feature inventory. Only InventoryPath is required.
	InventoryPath       string
	RegionsPath         string
	CommunesPath        string
	ArrondissementsPath string
	VillagesPath        string

	// StudyArea bounds ClassifyAll. The zero bound means the inventory
	// extent.
	StudyArea           orb.Bound
	HistoryStart        time.Time
	ClassifyLookback    time.Duration
	ClassifyConcurrency int
	// ClassifyInterval of zero classifies only at start-up.
	ClassifyInterval time.Duration
	MaxCloudCover    float64

	Mask     mask.Config
	Forecast forecast.Params

	// Classification snapshot publishing.
	KafkaEnabled             bool
	KafkaBrokers             []string
	KafkaClassificationTopic string
}

// parser collects the first error per variable so Load can report them all.
type parser struct {
	errs []error
}

func (p *parser) fail(key, value string) {
	p.errs = append(p.errs, domain.Configuration("invalid %s: %q", key, value))
}

func (p *parser) duration(key, def string) time.Duration {
	v := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.fail(key, v)
	}
	return d
}

func (p *parser) interval(key, def string) time.Duration {
	v := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		p.fail(key, v)
	}
	return d
}

func (p *parser) integer(key string, def, min int) int {
	v := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		p.fail(key, v)
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := sharedcfg.EnvOrDefault(key, strconv.FormatFloat(def, 'f', -1, 64))
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v)
	}
	return f
}

func (p *parser) date(key, def string) time.Time {
	v := sharedcfg.EnvOrDefault(key, def)
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		p.fail(key, v)
	}
	return t
}

// bound parses "west,south,east,north".
func (p *parser) bound(key string) orb.Bound {
	v := os.Getenv(key)
	if v == "" {
		return orb.Bound{}
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		p.fail(key, v)
		return orb.Bound{}
	}
	var c [4]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			p.fail(key, v)
			return orb.Bound{}
		}
		c[i] = f
	}
	b := orb.Bound{Min: orb.Point{c[0], c[1]}, Max: orb.Point{c[2], c[3]}}
	if !geo.ValidLonLat(c[0], c[1]) || !geo.ValidLonLat(c[2], c[3]) || c[0] >= c[2] || c[1] >= c[3] {
		p.fail(key, v)
		return orb.Bound{}
	}
	return b
}

func required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", domain.Configuration("%s is required", key)
	}
	return v, nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, domain.Configuration("%v", err)
	}

	var p parser
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RequestTimeout:  p.duration("REQUEST_TIMEOUT", "2m"),

		BackendURL:          os.Getenv("BACKEND_URL"),
		BackendToken:        os.Getenv("BACKEND_TOKEN"),
		BackendTimeout:      p.duration("BACKEND_TIMEOUT", "60s"),
		BackendMaxRetries:   p.integer("BACKEND_MAX_RETRIES", 3, 0),
		BackendRetryInitial: p.duration("BACKEND_RETRY_INITIAL", "500ms"),
		BackendRetryMax:     p.duration("BACKEND_RETRY_MAX", "10s"),
		BackendCacheSize:    p.integer("BACKEND_CACHE_SIZE", 256, 1),

		InventoryPath:       os.Getenv("INVENTORY_PATH"),
		RegionsPath:         os.Getenv("INVENTORY_REGIONS_PATH"),
		CommunesPath:        os.Getenv("INVENTORY_COMMUNES_PATH"),
		ArrondissementsPath: os.Getenv("INVENTORY_ARRONDISSEMENTS_PATH"),
		VillagesPath:        os.Getenv("INVENTORY_VILLAGES_PATH"),

		StudyArea:           p.bound("STUDY_AREA"),
		HistoryStart:        p.date("HISTORY_START", "2017-01-01"),
		ClassifyLookback:    p.duration("CLASSIFY_LOOKBACK", "720h"),
		ClassifyConcurrency: p.integer("CLASSIFY_CONCURRENCY", 8, 1),
		ClassifyInterval:    p.interval("CLASSIFY_INTERVAL", "24h"),
		MaxCloudCover:       p.float("MAX_CLOUD_COVER", 75),

		KafkaEnabled:             sharedcfg.EnvOrDefault("KAFKA_ENABLED", "false") == "true",
		KafkaBrokers:             sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaClassificationTopic: sharedcfg.EnvOrDefault("KAFKA_CLASSIFICATION_TOPIC", "pond-classifications"),
	}

	cfg.Mask = mask.DefaultConfig()
	cfg.Mask.CloudProbability = p.float("CLOUD_PROBABILITY_THRESHOLD", cfg.Mask.CloudProbability)
	cfg.Mask.CloudScoreMax = p.float("CLOUD_SCORE_MAX", cfg.Mask.CloudScoreMax)
	cfg.Mask.ZScore = p.float("TDOM_ZSCORE", cfg.Mask.ZScore)
	cfg.Mask.DarkSum = p.float("TDOM_DARK_SUM", cfg.Mask.DarkSum)

	cfg.Forecast = forecast.DefaultParams()
	cfg.Forecast.K = p.float("FORECAST_K", cfg.Forecast.K)
	cfg.Forecast.Gmax = p.float("FORECAST_GMAX", cfg.Forecast.Gmax)
	cfg.Forecast.L = p.float("FORECAST_L", cfg.Forecast.L)
	cfg.Forecast.Kr = p.float("FORECAST_KR", cfg.Forecast.Kr)
	cfg.Forecast.N = p.float("FORECAST_N", cfg.Forecast.N)
	cfg.Forecast.Alpha = p.float("FORECAST_ALPHA", cfg.Forecast.Alpha)
	cfg.Forecast.HorizonDays = p.integer("FORECAST_HORIZON_DAYS", cfg.Forecast.HorizonDays, 1)
	cfg.Forecast.StepOffset = p.duration("FORECAST_STEP_OFFSET", cfg.Forecast.StepOffset.String())

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}

	for _, key := range []string{"BACKEND_URL", "BACKEND_TOKEN", "INVENTORY_PATH"} {
		if _, err := required(key); err != nil {
			return nil, err
		}
	}
	if cfg.BackendRetryInitial > cfg.BackendRetryMax {
		return nil, domain.Configuration("BACKEND_RETRY_INITIAL %s exceeds BACKEND_RETRY_MAX %s", cfg.BackendRetryInitial, cfg.BackendRetryMax)
	}
	if cfg.MaxCloudCover < 0 || cfg.MaxCloudCover > 100 {
		return nil, domain.Configuration("MAX_CLOUD_COVER %g outside [0,100]", cfg.MaxCloudCover)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, domain.Configuration("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaClassificationTopic == "" {
		return nil, domain.Configuration("KAFKA_CLASSIFICATION_TOPIC is required when KAFKA_ENABLED is true")
	}
	if err := cfg.Mask.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Forecast.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
