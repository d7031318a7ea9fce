package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/landsat"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/raster"
)

func NewExtractHandler(log zerolog.Logger, e *application.Extractor) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "extract-geotiff")
		defer func() { recordErrorAndEndSpan(err, span) }()

		req := application.ExtractRequest{
			Source:   chi.URLParam(r, "source"),
			Variable: r.URL.Query().Get("variable"),
			SceneID:  r.URL.Query().Get("scene"),
		}

		if req.Variable == "" {
			err = fmt.Errorf("no variable is supplied in query")
			log.Error().Err(err).Msg("bad request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if req.SceneID != "" && !landsat.IsValidSceneID(req.SceneID) {
			err = fmt.Errorf("%s is not a valid Landsat scene identifier", req.SceneID)
			log.Error().Err(err).Msg("bad request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req.Extent, err = getExtentFromURL(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			log.Error().Err(err).Msg("bad request")
			return
		}

		req.Period, err = getPeriodFromURL(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			log.Error().Err(err).Msg("bad request")
			return
		}

		req.Method, err = raster.ParseMethod(r.URL.Query().Get("method"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			log.Error().Err(err).Msg("bad request")
			return
		}

		timeout, cancel := context.WithTimeout(log.WithContext(ctx), 5*time.Minute)
		defer cancel()

		stack, err := e.Extract(timeout, req)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			log.Error().Err(err).Msg("unable to extract raster data")
			return
		}

		filename := fmt.Sprintf("%s_%s_%s_%s.tif",
			req.Source, req.Variable,
			req.Period.Start.Format("20060102"), req.Period.End.Format("20060102"))

		w.Header().Add("Content-Type", "image/tiff")
		w.Header().Add("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		if err = raster.WriteGeoTIFF(w, stack, nil); err != nil {
			log.Error().Err(err).Msg("unable to write geotiff response")
		}
	})
}
