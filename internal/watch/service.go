// Package watch is the service core: it owns the collaborators built in main
// and exposes the operations the API and CLIs call.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/waterwatch-service/internal/classify"
	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/forecast"
	"github.com/couchcryptid/waterwatch-service/internal/geo"
	"github.com/couchcryptid/waterwatch-service/internal/index"
	"github.com/couchcryptid/waterwatch-service/internal/observability"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// StackBuilder produces the harmonized multi-sensor stack for a query.
type StackBuilder interface {
	Harmonize(ctx context.Context, q raster.Query) (raster.Stack, error)
}

// Forecaster simulates a pond from its observed water fraction.
type Forecaster interface {
	Run(ctx context.Context, f geo.Feature, fraction float64, start time.Time) ([]forecast.State, error)
}

// FeatureInventory is the static water-body inventory.
type FeatureInventory interface {
	Locate(p orb.Point) (geo.Feature, bool)
	Get(id string) (geo.Feature, bool)
	All() []geo.Feature
}

// TileRenderer returns a tile URL template for a scene rendered with vis.
type TileRenderer interface {
	TileURL(ctx context.Context, sceneID string, vis domain.Visualization) (string, error)
}

// Publisher emits a classification snapshot downstream.
type Publisher interface {
	PublishClassification(ctx context.Context, c domain.Classification) error
}

// Tile visualizations.
var (
	TrueColor = domain.Visualization{
		Bands: []string{raster.Red, raster.Green, raster.Blue},
		Min:   0,
		Max:   0.3,
	}
	WaterIndex = domain.Visualization{
		Bands:   []string{index.MNDWI},
		Min:     -0.3,
		Max:     0.3,
		Palette: []string{"d3d3d3", "84adff", "9698d1", "0000cc"},
	}
)

// Config holds the windows and limits of the core operations.
type Config struct {
	StudyArea        orb.Bound
	HistoryStart     time.Time
	ClassifyLookback time.Duration
	Concurrency      int
	RequestTimeout   time.Duration
}

// Deps are the collaborators of a Service. Publisher is optional.
type Deps struct {
	Stacks     StackBuilder
	Classifier *classify.Classifier
	Forecaster Forecaster
	Inventory  FeatureInventory
	Tiles      TileRenderer
	Publisher  Publisher
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Service is the explicit context object shared by every operation. It is
// safe for concurrent use.
type Service struct {
	cfg        Config
	stacks     StackBuilder
	classifier *classify.Classifier
	forecaster Forecaster
	inventory  FeatureInventory
	tiles      TileRenderer
	publisher  Publisher
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	ready  atomic.Bool
	latest atomic.Pointer[domain.Classification]
}

// New creates a Service.
func New(cfg Config, d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Service{
		cfg:        cfg,
		stacks:     d.Stacks,
		classifier: d.Classifier,
		forecaster: d.Forecaster,
		inventory:  d.Inventory,
		tiles:      d.Tiles,
		publisher:  d.Publisher,
		clock:      d.Clock,
		logger:     d.Logger,
		metrics:    d.Metrics,
	}
}

// CheckReadiness returns nil once a classification snapshot exists.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no classification snapshot yet")
	}
	return nil
}

// begin applies the request timeout and returns a func recording the
// outcome of operation op.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := s.clock.Now()
	cancel := context.CancelFunc(func() {})
	if s.cfg.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
	}
	return ctx, func(err error) {
		cancel()
		outcome := "success"
		if err != nil {
			outcome = string(domain.KindOf(err))
			if domain.IsTimeout(err) {
				outcome = "timeout"
			}
			s.logger.Warn("operation failed", "operation", op, "error", err)
		}
		s.metrics.OperationRequests.WithLabelValues(op, outcome).Inc()
		s.metrics.OperationDuration.WithLabelValues(op).Observe(s.clock.Since(start).Seconds())
	}
}

// locate finds the pond containing lon/lat.
func (s *Service) locate(lon, lat float64) (geo.Feature, error) {
	if !geo.ValidLonLat(lon, lat) {
		return geo.Feature{}, domain.InvalidInput("locate pond", "invalid coordinates %g,%g", lon, lat)
	}
	f, ok := s.inventory.Locate(orb.Point{lon, lat})
	if !ok {
		return geo.Feature{}, domain.InvalidInput("locate pond", "no pond contains %g,%g", lon, lat)
	}
	return f, nil
}

// checkTime rejects instants before the history start or after now.
func (s *Service) checkTime(ts time.Time) error {
	if ts.Before(s.cfg.HistoryStart) || ts.After(s.clock.Now()) {
		return domain.InvalidInput("check time", "time %s outside [%s, now]", ts.UTC().Format(time.RFC3339), s.cfg.HistoryStart.Format(time.DateOnly))
	}
	return nil
}

// classifiedStack harmonizes and classifies the scenes over bound in
// [from, to).
func (s *Service) classifiedStack(ctx context.Context, bound orb.Bound, from, to time.Time) (raster.Stack, error) {
	st, err := s.stacks.Harmonize(ctx, raster.Query{Bound: bound, From: from, To: to})
	if err != nil {
		return nil, err
	}
	return s.classifier.Stack(st)
}

// ListFeatures returns every pond in the inventory ordered by id.
func (s *Service) ListFeatures(ctx context.Context) []domain.FeatureSummary {
	_, done := s.begin(ctx, "list_features")
	defer done(nil)

	features := s.inventory.All()
	out := make([]domain.FeatureSummary, 0, len(features))
	for _, f := range features {
		out = append(out, domain.FeatureSummary{FeatureID: f.ID, Name: f.DisplayName(), Area: forecast.FeatureArea(f)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureID < out[j].FeatureID })
	return out
}

// FeatureDetails describes the pond containing lon/lat.
func (s *Service) FeatureDetails(ctx context.Context, lon, lat float64) (_ domain.FeatureDetails, err error) {
	_, done := s.begin(ctx, "feature_details")
	defer func() { done(err) }()

	f, err := s.locate(lon, lat)
	if err != nil {
		return domain.FeatureDetails{}, err
	}
	return details(f), nil
}

// FeatureByID describes the pond with the given inventory id.
func (s *Service) FeatureByID(ctx context.Context, id string) (_ domain.FeatureDetails, err error) {
	_, done := s.begin(ctx, "feature_by_id")
	defer func() { done(err) }()

	f, ok := s.inventory.Get(id)
	if !ok {
		return domain.FeatureDetails{}, domain.InvalidInput("feature by id", "no pond with id %q", id)
	}
	return details(f), nil
}

func details(f geo.Feature) domain.FeatureDetails {
	return domain.FeatureDetails{
		FeatureID:      f.ID,
		Name:           f.DisplayName(),
		Area:           forecast.FeatureArea(f),
		Region:         f.Hierarchy.Region,
		Commune:        f.Hierarchy.Commune,
		Arrondissement: f.Hierarchy.Arrondissement,
		Village:        f.Hierarchy.Village,
		Coordinates:    f.Geometry,
	}
}
