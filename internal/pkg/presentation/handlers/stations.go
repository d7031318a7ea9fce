package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application/services/agrimet"
	"github.com/dgketchum/metio/internal/pkg/domain"
)

func NewRetrieveStationsHandler(log zerolog.Logger, svc agrimet.AgrimetService) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-stations")
		defer func() { recordErrorAndEndSpan(err, span) }()

		timeout, cancel := context.WithTimeout(log.WithContext(ctx), 30*time.Second)
		defer cancel()

		var stations []domain.Station

		if r.URL.Query().Get("lat") != "" || r.URL.Query().Get("lon") != "" {
			var lat, lon float64
			lat, lon, err = getPointFromURL(r)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				log.Error().Err(err).Msg("bad request")
				return
			}

			stations, err = svc.RankedStations(timeout, lat, lon)
		} else {
			stations, err = svc.Stations(timeout)
		}

		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error().Err(err).Msg("unable to get stations")
			return
		}

		if limit := r.URL.Query().Get("limit"); limit != "" {
			n, convErr := strconv.Atoi(limit)
			if convErr == nil && n >= 0 && n < len(stations) {
				stations = stations[:n]
			}
		}

		w.Header().Add("Content-Type", "application/json")

		bytes, err := json.MarshalIndent(stations, " ", "  ")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error().Err(err).Msg("unable to marshal results to json")
			return
		}

		w.Write([]byte("{\"data\": " + string(bytes) + "}"))
	})
}
