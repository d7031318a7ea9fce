package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application/services/metdata"
	"github.com/dgketchum/metio/internal/pkg/domain"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/landsat"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/raster"
)

const DefaultLandsatHost = "https://landsat-pds.s3.amazonaws.com"

// ExtractRequest describes one extraction: a source variable over a period,
// bounded either by an explicit extent or by a Landsat scene, optionally
// warped onto that scene's grid.
type ExtractRequest struct {
	Source   string
	Variable string
	Extent   domain.Extent
	Period   domain.TimePeriod

	// SceneID names a collection-1 product whose MTL is fetched from the
	// archive; MTLPath points at a local copy instead.
	SceneID string
	MTLPath string

	Method raster.Method
}

type Extractor struct {
	services    map[string]metdata.MetService
	landsatHost string
	client      *http.Client
}

func NewExtractor(services map[string]metdata.MetService, landsatHost string) *Extractor {
	if landsatHost == "" {
		landsatHost = DefaultLandsatHost
	}
	return &Extractor{
		services:    services,
		landsatHost: landsatHost,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Sources lists the configured source names in stable order.
func (e *Extractor) Sources() []string {
	names := make([]string, 0, len(e.services))
	for name := range e.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract fetches the requested variable and, when a scene is given, warps
// the result onto the scene's UTM grid.
func (e *Extractor) Extract(ctx context.Context, req ExtractRequest) (*raster.Stack, error) {
	log := zerolog.Ctx(ctx)

	svc, ok := e.services[req.Source]
	if !ok {
		return nil, fmt.Errorf("source %s not in supported set %v", req.Source, e.Sources())
	}

	scene, err := e.resolveScene(ctx, req)
	if err != nil {
		return nil, err
	}

	extent := req.Extent
	if extent == (domain.Extent{}) {
		if scene == nil {
			return nil, errors.New("either an extent or a scene must be specified")
		}
		extent = scene.Extent()
	}

	log.Info().
		Str("source", req.Source).
		Str("variable", req.Variable).
		Msgf("extracting %d day(s) over (%.3f, %.3f, %.3f, %.3f)",
			req.Period.Days(), extent.West, extent.South, extent.East, extent.North)

	stack, err := svc.Query().
		Variable(req.Variable).
		Between(req.Period.Start, req.Period.End).
		Within(extent).
		Get(ctx)
	if err != nil {
		return nil, err
	}

	if scene == nil {
		return stack, nil
	}

	method := req.Method
	if method == "" {
		method = raster.Bilinear
	}

	log.Info().Msgf("warping to %dx%d grid in EPSG:%d", scene.Samples, scene.Lines, scene.EPSG())

	return raster.Warp(stack, scene.Grid(), method)
}

// ExtractTo runs the extraction and writes the result as a GeoTIFF.
func (e *Extractor) ExtractTo(ctx context.Context, w io.Writer, req ExtractRequest) error {
	stack, err := e.Extract(ctx, req)
	if err != nil {
		return err
	}
	return raster.WriteGeoTIFF(w, stack, nil)
}

// ExtractToFile runs the extraction and writes the GeoTIFF to path.
func (e *Extractor) ExtractToFile(ctx context.Context, path string, req ExtractRequest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := e.ExtractTo(ctx, f, req); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	return f.Close()
}

// Timeseries fetches a single-point daily series from a configured source.
func (e *Extractor) Timeseries(ctx context.Context, source, variable string, lat, lon float64, period domain.TimePeriod) (domain.TimeSeries, error) {
	svc, ok := e.services[source]
	if !ok {
		return domain.TimeSeries{}, fmt.Errorf("source %s not in supported set %v", source, e.Sources())
	}

	return svc.Query().
		Variable(variable).
		Between(period.Start, period.End).
		AtPoint(lat, lon).
		GetPoint(ctx)
}

func (e *Extractor) resolveScene(ctx context.Context, req ExtractRequest) (*landsat.Scene, error) {
	switch {
	case req.MTLPath != "":
		f, err := os.Open(req.MTLPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return landsat.ParseMTL(f)
	case req.SceneID != "":
		mtlURL, err := landsat.MTLURL(e.landsatHost, req.SceneID)
		if err != nil {
			return nil, err
		}
		return landsat.FetchMTL(ctx, e.client, mtlURL)
	default:
		return nil, nil
	}
}
