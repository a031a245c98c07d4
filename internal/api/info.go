package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"commute-api/internal/arrival"
	"commute-api/internal/cache"
	"commute-api/internal/upstream"
)

const (
	busKey     = "bus"
	weatherKey = "weather"
)

// ArrivalFetcher is satisfied by upstream.TransitClient.
type ArrivalFetcher interface {
	FetchArrivals(ctx context.Context) []arrival.Arrival
}

// ForecastFetcher is satisfied by upstream.WeatherClient.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context) ([]upstream.Forecast, error)
}

type InfoHandler struct {
	cache         *cache.Cache
	bus           ArrivalFetcher
	weather       ForecastFetcher
	busWindow     time.Duration
	weatherWindow time.Duration
}

func NewInfoHandler(c *cache.Cache, bus ArrivalFetcher, weather ForecastFetcher, busWindow, weatherWindow time.Duration) *InfoHandler {
	return &InfoHandler{
		cache:         c,
		bus:           bus,
		weather:       weather,
		busWindow:     busWindow,
		weatherWindow: weatherWindow,
	}
}

type infoResponse struct {
	Bus     []arrival.Arrival `json:"bus"`
	Weather any               `json:"weather"`
}

type errorBody struct {
	Error string `json:"error"`
}

// HandleInfo returns the cached-or-fresh bus arrivals and forecast.
func (h *InfoHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	var resp infoResponse
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		buses, err := cache.Fetch(h.cache, busKey, h.busWindow, func() ([]arrival.Arrival, error) {
			buses := h.bus.FetchArrivals(ctx)
			// A cancelled fetch comes back empty; do not keep it.
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return buses, nil
		})
		resp.Bus = buses
		return err
	})
	g.Go(func() error {
		weather, err := cache.Fetch(h.cache, weatherKey, h.weatherWindow, func() (any, error) {
			forecasts, err := h.weather.FetchForecast(ctx)
			var statusErr *upstream.StatusError
			if errors.As(err, &statusErr) {
				return errorBody{Error: statusErr.Error()}, nil
			}
			if err != nil {
				return nil, err
			}
			return forecasts, nil
		})
		resp.Weather = weather
		return err
	})

	if err := g.Wait(); err != nil {
		body := errorBody{Error: err.Error()}
		log.Printf("info response: %+v", body)
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
