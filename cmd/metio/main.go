package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application"
	"github.com/dgketchum/metio/internal/pkg/application/services/agrimet"
	"github.com/dgketchum/metio/internal/pkg/application/services/elevation"
	"github.com/dgketchum/metio/internal/pkg/application/services/metdata"
	"github.com/dgketchum/metio/internal/pkg/domain"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/env"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/raster"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/sources"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/thredds"
	"github.com/dgketchum/metio/internal/pkg/presentation"
)

const serviceName = "metio"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s <command> [flags]

commands:
  extract   fetch a variable over an extent or Landsat scene and write a GeoTIFF
  stations  list Agrimet stations, optionally ranked by distance to a point
  serve     run the HTTP API

`, serviceName)
	os.Exit(2)
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()
	ctx := log.WithContext(context.Background())

	if len(os.Args) < 2 {
		usage()
	}

	catalogPath := env.GetVariableOrDefault(log, "METIO_SOURCES", "")
	catalog, err := sources.Load(catalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load sources catalog")
	}

	extractor := newExtractor(log, catalog)

	switch os.Args[1] {
	case "extract":
		runExtract(ctx, log, extractor, os.Args[2:])
	case "stations":
		runStations(ctx, log, os.Args[2:])
	case "serve":
		runServe(log, extractor)
	default:
		usage()
	}
}

// newExtractor builds one met data service per catalog source, honoring
// METIO_<SOURCE>_URL overrides such as METIO_GRIDMET_URL.
func newExtractor(log zerolog.Logger, catalog sources.Catalog) *application.Extractor {
	services := map[string]metdata.MetService{}

	for name, src := range catalog.Sources {
		envName := fmt.Sprintf("METIO_%s_URL", strings.ToUpper(name))
		baseURL := env.GetVariableOrDefault(log, envName, src.BaseURL)
		services[name] = metdata.NewMetService(name, catalog, thredds.NewClient(baseURL))
	}

	landsatHost := env.GetVariableOrDefault(log, "METIO_LANDSAT_URL", application.DefaultLandsatHost)

	return application.NewExtractor(services, landsatHost)
}

func runExtract(ctx context.Context, log zerolog.Logger, extractor *application.Extractor, args []string) {
	flags := flag.NewFlagSet("extract", flag.ExitOnError)
	source := flags.String("source", "gridmet", "source archive to extract from")
	variable := flags.String("variable", "", "variable code to extract")
	start := flags.String("start", "", "first day of the period, YYYY-MM-DD")
	end := flags.String("end", "", "last day of the period, YYYY-MM-DD")
	bbox := flags.String("bbox", "", "geographic extent as west,south,east,north")
	scene := flags.String("scene", "", "Landsat collection-1 product ID to align the output grid to")
	mtl := flags.String("mtl", "", "path to a local Landsat MTL file instead of fetching by scene ID")
	method := flags.String("method", "bilinear", "resampling method, bilinear or nearest")
	out := flags.String("out", "", "output GeoTIFF path")
	flags.Parse(args)

	if *variable == "" {
		log.Fatal().Msg("a variable must be specified")
	}

	req := application.ExtractRequest{
		Source:   *source,
		Variable: *variable,
		SceneID:  *scene,
		MTLPath:  *mtl,
	}

	var err error
	if req.Period, err = parsePeriod(*start, *end); err != nil {
		log.Fatal().Err(err).Msg("invalid period")
	}
	if req.Extent, err = parseExtent(*bbox); err != nil {
		log.Fatal().Err(err).Msg("invalid extent")
	}
	if req.Method, err = raster.ParseMethod(*method); err != nil {
		log.Fatal().Err(err).Msg("invalid method")
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("%s_%s_%s_%s.tif", *source, *variable,
			req.Period.Start.Format("20060102"), req.Period.End.Format("20060102"))
	}

	if err := extractor.ExtractToFile(ctx, path, req); err != nil {
		log.Fatal().Err(err).Msg("extraction failed")
	}

	log.Info().Msgf("wrote %s", path)
}

func runStations(ctx context.Context, log zerolog.Logger, args []string) {
	flags := flag.NewFlagSet("stations", flag.ExitOnError)
	lat := flags.Float64("lat", 0, "latitude to rank stations by distance from")
	lon := flags.Float64("lon", 0, "longitude to rank stations by distance from")
	limit := flags.Int("limit", 0, "maximum number of stations to list, 0 for all")
	flags.Parse(args)

	svc := agrimet.NewAgrimetService(agrimet.DefaultStationInfoURL, agrimet.DefaultDailyURL)

	var stations []domain.Station
	var err error

	if *lat != 0 || *lon != 0 {
		stations, err = svc.RankedStations(ctx, *lat, *lon)
	} else {
		stations, err = svc.Stations(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("unable to list stations")
	}

	if *limit > 0 && *limit < len(stations) {
		stations = stations[:*limit]
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(stations); err != nil {
		log.Fatal().Err(err).Msg("unable to marshal stations to json")
	}
}

func runServe(log zerolog.Logger, extractor *application.Extractor) {
	port := env.GetVariableOrDefault(log, "SERVICE_PORT", "8880")

	stations := agrimet.NewAgrimetService(agrimet.DefaultStationInfoURL, agrimet.DefaultDailyURL)
	elev := elevation.NewElevationService(elevation.DefaultQueryURL)

	api := presentation.NewAPI(log, chi.NewRouter(), extractor, stations, elev)
	if err := api.Start(port); err != nil {
		log.Fatal().Err(err).Msg("failed to start router")
	}
}

func parsePeriod(start, end string) (domain.TimePeriod, error) {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return domain.TimePeriod{}, fmt.Errorf("start must be YYYY-MM-DD (%w)", err)
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return domain.TimePeriod{}, fmt.Errorf("end must be YYYY-MM-DD (%w)", err)
	}

	period := domain.NewTimePeriod(from, to)
	return period, period.Valid()
}

func parseExtent(bbox string) (domain.Extent, error) {
	if bbox == "" {
		return domain.Extent{}, nil
	}

	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return domain.Extent{}, fmt.Errorf("bbox must be west,south,east,north")
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Extent{}, fmt.Errorf("bbox must be west,south,east,north")
		}
		vals[i] = v
	}

	extent := domain.Extent{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	return extent, extent.Valid()
}
