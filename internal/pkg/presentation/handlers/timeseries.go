package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application"
)

func NewRetrieveTimeseriesHandler(log zerolog.Logger, e *application.Extractor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-timeseries")
		defer func() { recordErrorAndEndSpan(err, span) }()

		source := chi.URLParam(r, "source")
		variable := r.URL.Query().Get("variable")
		if variable == "" {
			err = fmt.Errorf("no variable is supplied in query")
			log.Error().Err(err).Msg("bad request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		lat, lon, err := getPointFromURL(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			log.Error().Err(err).Msg("bad request")
			return
		}

		period, err := getPeriodFromURL(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			log.Error().Err(err).Msg("bad request")
			return
		}

		timeout, cancel := context.WithTimeout(log.WithContext(ctx), 30*time.Second)
		defer cancel()

		series, err := e.Timeseries(timeout, source, variable, lat, lon, period)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error().Err(err).Msg("unable to get timeseries")
			return
		}

		w.Header().Add("Content-Type", "application/json")

		bytes, err := json.MarshalIndent(series, " ", "  ")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error().Err(err).Msg("unable to marshal results to json")
			return
		}

		w.Write([]byte("{\"data\": " + string(bytes) + "}"))
	})
}
