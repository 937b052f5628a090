package domain

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
)

// TimeSeriesPoint is one spatially aggregated observation of a water body.
// Value is nil when the scene covered the feature but had no valid pixel.
type TimeSeriesPoint struct {
	Time   time.Time
	Value  *float64
	StdDev *float64
}

type timeSeriesPointJSON struct {
	Time   int64    `json:"time"` // unix milliseconds
	Value  *float64 `json:"value"`
	StdDev *float64 `json:"stddev,omitempty"`
}

// MarshalJSON encodes the timestamp as unix milliseconds, which is what
// charting front ends consume.
func (p TimeSeriesPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(timeSeriesPointJSON{Time: p.Time.UnixMilli(), Value: p.Value, StdDev: p.StdDev})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *TimeSeriesPoint) UnmarshalJSON(data []byte) error {
	var raw timeSeriesPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Time = time.UnixMilli(raw.Time).UTC()
	p.Value = raw.Value
	p.StdDev = raw.StdDev
	return nil
}

// DayValue is an entry of the days-with-data view.
type DayValue struct {
	Date  string  `json:"date"` // "2006 January 02"
	Value float64 `json:"value"`
}

// FeatureSeries is the payload returned by the historical and forecast
// time-series operations.
type FeatureSeries struct {
	FeatureID    string            `json:"feature_id"`
	Name         string            `json:"name"`
	Coordinates  orb.Geometry      `json:"coordinates"`
	Values       []TimeSeriesPoint `json:"values"`
	DaysWithData []DayValue        `json:"days_with_data,omitempty"`
}

// PondClass is the ordinal fill state of a water body.
type PondClass int

const (
	ClassNoData     PondClass = -1
	ClassDry        PondClass = 0
	ClassPartial    PondClass = 1
	ClassLikelyFull PondClass = 2
)

func (c PondClass) String() string {
	switch c {
	case ClassNoData:
		return "no-data"
	case ClassDry:
		return "dry"
	case ClassPartial:
		return "partial"
	case ClassLikelyFull:
		return "likely-full"
	default:
		return "unknown"
	}
}

// FeatureClass is the classification of one water body from its most
// recent covering scene.
type FeatureClass struct {
	FeatureID     string    `json:"feature_id"`
	Class         PondClass `json:"class"`
	Label         string    `json:"label"`
	WaterFraction *float64  `json:"water_fraction,omitempty"`
	ValidFraction float64   `json:"valid_fraction"`
	SceneID       string    `json:"scene_id"`
	SceneTime     time.Time `json:"scene_time"`
}

// Classification is the snapshot produced by classifying every feature.
// Features that could not be classified are listed in Failures with the
// reason instead of receiving a placeholder class.
type Classification struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Classes     map[string]PondClass    `json:"classes"`
	Details     []FeatureClass          `json:"details"`
	Failures    map[string]ErrorPayload `json:"failures,omitempty"`
}

// TileDescriptor points at pre-rendered tiles for one scene over a feature.
type TileDescriptor struct {
	FeatureID     string         `json:"feature_id"`
	TrueColorURL  string         `json:"true_color_url"`
	WaterIndexURL string         `json:"water_index_url"`
	Date          string         `json:"date"`
	Properties    map[string]any `json:"properties"`
}

// FeatureDetails describes a water body and where it sits administratively.
type FeatureDetails struct {
	FeatureID      string       `json:"feature_id"`
	Name           string       `json:"name"`
	Area           float64      `json:"area"` // m²
	Region         string       `json:"region,omitempty"`
	Commune        string       `json:"commune,omitempty"`
	Arrondissement string       `json:"arrondissement,omitempty"`
	Village        string       `json:"village,omitempty"`
	Coordinates    orb.Geometry `json:"coordinates"`
}

// FeatureSummary is an entry of the feature listing.
type FeatureSummary struct {
	FeatureID string  `json:"feature_id"`
	Name      string  `json:"name"`
	Area      float64 `json:"area"`
}

// Visualization selects the bands and stretch a tile is rendered with.
type Visualization struct {
	Bands   []string `json:"bands" msgpack:"bands"`
	Min     float64  `json:"min" msgpack:"min"`
	Max     float64  `json:"max" msgpack:"max"`
	Palette []string `json:"palette,omitempty" msgpack:"palette,omitempty"`
}
