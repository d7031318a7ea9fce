package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application/services/elevation"
)

type elevationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	Units     string  `json:"units"`
}

func NewRetrieveElevationHandler(log zerolog.Logger, svc elevation.ElevationService) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-elevation")
		defer func() { recordErrorAndEndSpan(err, span) }()

		lat, lon, err := getPointFromURL(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			log.Error().Err(err).Msg("bad request")
			return
		}

		timeout, cancel := context.WithTimeout(log.WithContext(ctx), 30*time.Second)
		defer cancel()

		meters, err := svc.Elevation(timeout, lat, lon)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error().Err(err).Msg("unable to get elevation")
			return
		}

		w.Header().Add("Content-Type", "application/json")

		bytes, err := json.MarshalIndent(elevationResponse{
			Latitude:  lat,
			Longitude: lon,
			Elevation: meters,
			Units:     "m",
		}, " ", "  ")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error().Err(err).Msg("unable to marshal results to json")
			return
		}

		w.Write([]byte("{\"data\": " + string(bytes) + "}"))
	})
}
