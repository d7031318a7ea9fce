package metdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgketchum/metio/internal/pkg/domain"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/raster"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/sources"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/thredds"
)

// pointPad is the half-window used to turn a point request into a subset
// request, a little over one GridMet cell (1/24 degree).
const pointPad = 0.05

// SubsetFetcher is the slice of the thredds client this service needs.
type SubsetFetcher interface {
	FetchSubset(ctx context.Context, dataset, variable string, extent domain.Extent, period domain.TimePeriod, epoch time.Time) (*thredds.Subset, error)
}

type MetService interface {
	Source() string
	Query() MetServiceQuery
}

type MetServiceQuery interface {
	Variable(code string) MetServiceQuery
	Between(start, end time.Time) MetServiceQuery
	Within(extent domain.Extent) MetServiceQuery
	AtPoint(lat, lon float64) MetServiceQuery
	Get(ctx context.Context) (*raster.Stack, error)
	GetPoint(ctx context.Context) (domain.TimeSeries, error)
}

// NewMetService returns a service for one named source in the catalog, such
// as gridmet or topowx.
func NewMetService(source string, catalog sources.Catalog, fetcher SubsetFetcher) MetService {
	return &ms{source: source, catalog: catalog, fetcher: fetcher}
}

type ms struct {
	source  string
	catalog sources.Catalog
	fetcher SubsetFetcher
}

type msq struct {
	ms
	variable string
	extent   domain.Extent
	hasBox   bool
	lat, lon float64
	hasPoint bool
	period   domain.TimePeriod
	err      error
}

func (svc *ms) Source() string {
	return svc.source
}

func (svc *ms) Query() MetServiceQuery {
	return &msq{ms: *svc}
}

func (q msq) Variable(code string) MetServiceQuery {
	q.variable = code
	return q
}

func (q msq) Between(start, end time.Time) MetServiceQuery {
	q.period = domain.NewTimePeriod(start, end)
	return q
}

func (q msq) Within(extent domain.Extent) MetServiceQuery {
	if err := extent.Valid(); err != nil {
		q.err = err
		return q
	}
	q.extent = extent
	q.hasBox = true
	return q
}

func (q msq) AtPoint(lat, lon float64) MetServiceQuery {
	q.lat = lat
	q.lon = lon
	q.hasPoint = true
	return q
}

func (q msq) Get(ctx context.Context) (*raster.Stack, error) {
	if q.err != nil {
		return nil, q.err
	}
	if !q.hasBox {
		return nil, errors.New("an extent must be specified")
	}

	_, v, subset, err := q.fetch(ctx, q.extent)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(subset.Days))
	for i, d := range subset.Days {
		names[i] = d.Format("2006-01-02")
	}

	return &raster.Stack{
		Source:   q.source,
		Variable: q.variable,
		Units:    v.Units,
		Names:    names,
		Grid:     subset.Grid(),
		Bands:    subset.Data,
	}, nil
}

func (q msq) GetPoint(ctx context.Context) (domain.TimeSeries, error) {
	if q.err != nil {
		return domain.TimeSeries{}, q.err
	}
	if !q.hasPoint {
		return domain.TimeSeries{}, errors.New("a point must be specified")
	}

	extent := domain.Extent{
		West:  q.lon - pointPad,
		South: q.lat - pointPad,
		East:  q.lon + pointPad,
		North: q.lat + pointPad,
	}

	_, v, subset, err := q.fetch(ctx, extent)
	if err != nil {
		return domain.TimeSeries{}, err
	}

	values := subset.At(q.lat, q.lon)
	ts := domain.TimeSeries{
		Source:   q.source,
		Variable: q.variable,
		Units:    v.Units,
		Location: domain.NewPoint(q.lat, q.lon),
		Values:   make([]domain.TimeValue, len(values)),
	}

	for i, value := range values {
		tv := domain.TimeValue{When: subset.Days[i]}
		if !math.IsNaN(value) {
			value := value
			tv.Value = &value
		}
		ts.Values[i] = tv
	}

	return ts, nil
}

func (q msq) fetch(ctx context.Context, extent domain.Extent) (sources.Source, sources.Variable, *thredds.Subset, error) {
	if q.variable == "" {
		return sources.Source{}, sources.Variable{}, nil, errors.New("a variable must be specified")
	}
	if err := q.period.Valid(); err != nil {
		return sources.Source{}, sources.Variable{}, nil, err
	}

	src, v, err := q.catalog.Lookup(q.source, q.variable)
	if err != nil {
		return sources.Source{}, sources.Variable{}, nil, err
	}

	subset, err := q.fetcher.FetchSubset(ctx, v.Path, v.Name, extent, q.period, src.EpochTime())
	if err != nil {
		return sources.Source{}, sources.Variable{}, nil, fmt.Errorf("invalid %s query: %w", q.source, err)
	}

	return src, v, subset, nil
}
