package presentation

import (
	"compress/flate"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application"
	"github.com/dgketchum/metio/internal/pkg/application/services/agrimet"
	"github.com/dgketchum/metio/internal/pkg/application/services/elevation"
	"github.com/dgketchum/metio/internal/pkg/presentation/handlers"
)

type API interface {
	Start(port string) error
	Router() chi.Router
}

type metioAPI struct {
	router chi.Router
	log    zerolog.Logger
}

func NewAPI(log zerolog.Logger, r chi.Router, extractor *application.Extractor, stations agrimet.AgrimetService, elev elevation.ElevationService) API {
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	// Enable gzip compression for our responses
	compressor := middleware.NewCompressor(
		flate.DefaultCompression,
		"application/json",
	)
	r.Use(compressor.Handler)
	r.Use(otelchi.Middleware("metio", otelchi.WithChiRoutes(r)))

	a := &metioAPI{
		router: r,
		log:    log,
	}

	a.addMetioHandlers(r, extractor, stations, elev)
	a.addProbeHandlers(r)

	return a
}

func (a *metioAPI) Start(port string) error {
	a.log.Info().Msgf("Starting metio on port:%s", port)
	return http.ListenAndServe(":"+port, a.router)
}

func (a *metioAPI) Router() chi.Router {
	return a.router
}

func (a *metioAPI) addMetioHandlers(r chi.Router, extractor *application.Extractor, stations agrimet.AgrimetService, elev elevation.ElevationService) {
	r.Get(
		"/api/timeseries/{source}",
		handlers.NewRetrieveTimeseriesHandler(a.log, extractor),
	)
	r.Get(
		"/api/extract/{source}",
		handlers.NewExtractHandler(a.log, extractor),
	)
	r.Get(
		"/api/stations",
		handlers.NewRetrieveStationsHandler(a.log, stations),
	)
	r.Get(
		"/api/elevation",
		handlers.NewRetrieveElevationHandler(a.log, elev),
	)
}

func (a *metioAPI) addProbeHandlers(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
