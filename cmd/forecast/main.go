// Command forecast prints the observed history or the water-area forecast
// of one pond as JSON. It reads the same environment as the server.
//
// Usage:
//
//	go run ./cmd/forecast -pond 101
//	go run ./cmd/forecast -lon -14.995 -lat 15.005 -history
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/waterwatch-service/internal/app"
	"github.com/couchcryptid/waterwatch-service/internal/config"
	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
	"github.com/couchcryptid/waterwatch-service/internal/watch"
)

func main() {
	pond := flag.String("pond", "", "pond id from the inventory")
	lon := flag.Float64("lon", math.NaN(), "longitude of a point inside the pond")
	lat := flag.Float64("lat", math.NaN(), "latitude of a point inside the pond")
	history := flag.Bool("history", false, "print the observed time series instead of the forecast")
	flag.Parse()

	byPoint := !math.IsNaN(*lon) || !math.IsNaN(*lat)
	if (*pond == "") == !byPoint || (*pond != "" && *history) {
		fmt.Fprintln(os.Stderr, "give either -pond or -lon/-lat; -history needs -lon/-lat")
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*pond, *lon, *lat, *history))
}

func run(pond string, lon, lat float64, history bool) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	cfg.KafkaEnabled = false

	// Logs go to stderr so stdout stays a single JSON document.
	logger := observability.NewLoggerTo(os.Stderr, cfg.LogLevel, "text")
	svc, closePublisher, err := app.Build(cfg, logger, observability.NewMetrics())
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		return 1
	}
	defer closePublisher() //nolint:errcheck // publishing is disabled

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fs, err := query(ctx, svc, pond, lon, lat, history)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		enc := json.NewEncoder(os.Stderr)
		enc.Encode(domain.NewErrorPayload(err)) //nolint:errcheck // best effort
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fs); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		return 1
	}
	return 0
}

func query(ctx context.Context, svc *watch.Service, pond string, lon, lat float64, history bool) (domain.FeatureSeries, error) {
	switch {
	case pond != "":
		return svc.ForecastForFeature(ctx, pond)
	case history:
		return svc.TimeSeriesForPoint(ctx, lon, lat)
	default:
		return svc.ForecastForPoint(ctx, lon, lat)
	}
}
