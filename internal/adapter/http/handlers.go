package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/couchcryptid/waterwatch-service/internal/domain"
)

// lonLat reads the lon and lat query parameters.
func lonLat(r *http.Request) (float64, float64, error) {
	q := r.URL.Query()
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return 0, 0, domain.InvalidInput("parse query", "lon %q is not a number", q.Get("lon"))
	}
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return 0, 0, domain.InvalidInput("parse query", "lat %q is not a number", q.Get("lat"))
	}
	return lon, lat, nil
}

// timestamp accepts unix milliseconds, which is what the map client sends,
// or RFC 3339.
func timestamp(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("time")
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, domain.InvalidInput("parse query", "time %q is neither unix milliseconds nor RFC 3339", v)
	}
	return t, nil
}

func (s *Server) handleListPonds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListFeatures(r.Context()))
}

func (s *Server) handlePond(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.FeatureByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handlePondForecast(w http.ResponseWriter, r *http.Request) {
	fs, err := s.svc.ForecastForFeature(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Latest(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.ClassifyAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := lonLat(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.svc.FeatureDetails(r.Context(), lon, lat)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := lonLat(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fs, err := s.svc.TimeSeriesForPoint(r.Context(), lon, lat)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := lonLat(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fs, err := s.svc.ForecastForPoint(r.Context(), lon, lat)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request) {
	lon, lat, err := lonLat(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ts, err := timestamp(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	td, err := s.svc.TileDescriptorForPoint(r.Context(), lon, lat, ts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, td)
}
