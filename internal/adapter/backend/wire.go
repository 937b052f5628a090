package backend

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
	"github.com/couchcryptid/waterwatch-service/internal/forecast"
	"github.com/couchcryptid/waterwatch-service/internal/raster"
)

// Wire types of the compute backend. Rasters travel as row-major float64
// arrays; msgpack keeps NaN no-data values intact.

type wireGrid struct {
	Width       int     `msgpack:"width"`
	Height      int     `msgpack:"height"`
	OriginLon   float64 `msgpack:"origin_lon"`
	OriginLat   float64 `msgpack:"origin_lat"`
	PixelWidth  float64 `msgpack:"pixel_width"`
	PixelHeight float64 `msgpack:"pixel_height"`
	Scale       float64 `msgpack:"scale"`
}

type wireLayer struct {
	Grid   wireGrid  `msgpack:"grid"`
	Values []float64 `msgpack:"values"`
}

type wireScene struct {
	ID         string               `msgpack:"id"`
	Time       int64                `msgpack:"time"` // unix milliseconds
	Sensor     string               `msgpack:"sensor"`
	Grid       wireGrid             `msgpack:"grid"`
	Bands      map[string][]float64 `msgpack:"bands"`
	Properties map[string]float64   `msgpack:"properties"`
}

type bbox [4]float64 // west, south, east, north

func toBBox(b orb.Bound) bbox {
	return bbox{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

type sceneQuery struct {
	BBox   bbox   `msgpack:"bbox"`
	From   int64  `msgpack:"from"`
	To     int64  `msgpack:"to"`
	Sensor string `msgpack:"sensor"`
}

type sceneResult struct {
	Scenes []wireScene `msgpack:"scenes"`
}

type sceneRef struct {
	SceneID string `msgpack:"scene_id"`
}

type layerResult struct {
	Layer wireLayer `msgpack:"layer"`
}

type tileQuery struct {
	SceneID string               `msgpack:"scene_id"`
	Vis     domain.Visualization `msgpack:"vis"`
}

type tileResult struct {
	URL string `msgpack:"url"`
}

type regionQuery struct {
	BBox bbox `msgpack:"bbox"`
}

type forecastQuery struct {
	BBox bbox  `msgpack:"bbox"`
	Run  int64 `msgpack:"run"`
}

type forecastResult struct {
	Fields []struct {
		Hour  int       `msgpack:"hour"`
		Layer wireLayer `msgpack:"layer"`
	} `msgpack:"fields"`
}

type reanalysisQuery struct {
	BBox bbox  `msgpack:"bbox"`
	From int64 `msgpack:"from"`
	To   int64 `msgpack:"to"`
}

type reanalysisResult struct {
	Fields []struct {
		Time  int64     `msgpack:"time"`
		Layer wireLayer `msgpack:"layer"`
	} `msgpack:"fields"`
}

func (g wireGrid) grid() raster.Grid {
	return raster.Grid{
		Width:       g.Width,
		Height:      g.Height,
		OriginLon:   g.OriginLon,
		OriginLat:   g.OriginLat,
		PixelWidth:  g.PixelWidth,
		PixelHeight: g.PixelHeight,
		Scale:       g.Scale,
	}
}

func (l wireLayer) layer() (raster.Layer, error) {
	out := raster.Layer{Grid: l.Grid.grid(), Values: raster.Band(l.Values)}
	if err := out.Validate(); err != nil {
		return raster.Layer{}, fmt.Errorf("decode layer: %w", err)
	}
	return out, nil
}

func (w wireScene) scene() (*raster.Scene, error) {
	s := &raster.Scene{
		ID:         w.ID,
		Time:       time.UnixMilli(w.Time).UTC(),
		Sensor:     raster.Sensor(w.Sensor),
		Grid:       w.Grid.grid(),
		Bands:      make(map[string]raster.Band, len(w.Bands)),
		Properties: w.Properties,
	}
	if s.Properties == nil {
		s.Properties = map[string]float64{}
	}
	for name, values := range w.Bands {
		s.Bands[name] = raster.Band(values)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return s, nil
}

func (r forecastResult) fields() ([]forecast.ForecastField, error) {
	out := make([]forecast.ForecastField, 0, len(r.Fields))
	for _, f := range r.Fields {
		l, err := f.Layer.layer()
		if err != nil {
			return nil, fmt.Errorf("forecast hour %d: %w", f.Hour, err)
		}
		out = append(out, forecast.ForecastField{Hour: f.Hour, Layer: l})
	}
	return out, nil
}

func (r reanalysisResult) fields() ([]forecast.RateField, error) {
	out := make([]forecast.RateField, 0, len(r.Fields))
	for _, f := range r.Fields {
		l, err := f.Layer.layer()
		if err != nil {
			return nil, fmt.Errorf("reanalysis field %d: %w", f.Time, err)
		}
		out = append(out, forecast.RateField{Time: time.UnixMilli(f.Time).UTC(), Layer: l})
	}
	return out, nil
}
