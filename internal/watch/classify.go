package watch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

// ClassifyAll classifies every pond in the inventory from the most recent
// scene covering it within the lookback window. Ponds that cannot be
// classified are reported in Failures. The snapshot becomes the one
// returned by Latest and, when a publisher is configured, is published.
func (s *Service) ClassifyAll(ctx context.Context) (_ domain.Classification, err error) {
	ctx, done := s.begin(ctx, "classify_all")
	defer func() { done(err) }()

	now := s.clock.Now().UTC()
	st, err := s.classifiedStack(ctx, s.cfg.StudyArea, now.Add(-s.cfg.ClassifyLookback), now)
	if err != nil {
		return domain.Classification{}, err
	}
	if len(st) == 0 {
		return domain.Classification{}, domain.DataUnavailable("classify all", "no scenes in the last %s", s.cfg.ClassifyLookback)
	}

	features := s.inventory.All()
	results := make([]domain.FeatureClass, len(features))
	failures := make([]error, len(features))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, f := range features {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], failures[i] = s.classifier.Feature(st, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Classification{}, err
	}

	out := domain.Classification{
		GeneratedAt: now,
		Classes:     make(map[string]domain.PondClass, len(features)),
		Failures:    map[string]domain.ErrorPayload{},
	}
	counts := map[domain.PondClass]int{}
	for i, f := range features {
		if failures[i] != nil {
			out.Failures[f.ID] = domain.NewErrorPayload(failures[i])
			continue
		}
		out.Classes[f.ID] = results[i].Class
		out.Details = append(out.Details, results[i])
		counts[results[i].Class]++
	}
	for _, c := range []domain.PondClass{domain.ClassNoData, domain.ClassDry, domain.ClassPartial, domain.ClassLikelyFull} {
		s.metrics.PondsByClass.WithLabelValues(c.String()).Set(float64(counts[c]))
	}

	s.latest.Store(&out)
	s.ready.Store(true)
	s.logger.Info("ponds classified",
		"scenes", len(st),
		"classified", len(out.Classes),
		"failed", len(out.Failures),
	)

	if s.publisher != nil {
		if perr := s.publisher.PublishClassification(ctx, out); perr != nil {
			s.logger.Error("publish classification failed", "error", perr)
		} else {
			s.metrics.ClassificationsPublished.Inc()
		}
	}
	return out, nil
}

// Latest returns the most recent snapshot, classifying on first use.
func (s *Service) Latest(ctx context.Context) (domain.Classification, error) {
	if c := s.latest.Load(); c != nil {
		return *c, nil
	}
	return s.ClassifyAll(ctx)
}
