package metdata

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/dgketchum/metio/internal/pkg/domain"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/sources"
	"github.com/dgketchum/metio/internal/pkg/infrastructure/thredds"
)

type fetcherMock struct {
	FetchSubsetFunc func(ctx context.Context, dataset, variable string, extent domain.Extent, period domain.TimePeriod, epoch time.Time) (*thredds.Subset, error)
	calls           []domain.Extent
}

func (f *fetcherMock) FetchSubset(ctx context.Context, dataset, variable string, extent domain.Extent, period domain.TimePeriod, epoch time.Time) (*thredds.Subset, error) {
	f.calls = append(f.calls, extent)
	return f.FetchSubsetFunc(ctx, dataset, variable, extent, period, epoch)
}

var (
	testStart = time.Date(2014, 5, 18, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2014, 5, 19, 0, 0, 0, 0, time.UTC)
	boxExtent = domain.Extent{West: -112.5, South: 44.3, East: -111.1, North: 45.6}
)

func testSubset(variable string, epoch time.Time) *thredds.Subset {
	return &thredds.Subset{
		Variable: variable,
		Lats:     []float64{45.0, 44.5},
		Lons:     []float64{-112.0, -111.5},
		Days:     []time.Time{testStart, testEnd},
		Data: [][][]float64{
			{{1, 2}, {3, 4}},
			{{5, 6}, {7, math.NaN()}},
		},
	}
}

func mockFetcher(is *is.I, wantDataset, wantVariable string) *fetcherMock {
	return &fetcherMock{
		FetchSubsetFunc: func(ctx context.Context, dataset, variable string, extent domain.Extent, period domain.TimePeriod, epoch time.Time) (*thredds.Subset, error) {
			is.Equal(dataset, wantDataset)
			is.Equal(variable, wantVariable)
			return testSubset(variable, epoch), nil
		},
	}
}

func TestQueryGet(t *testing.T) {
	is := is.New(t)

	fetcher := mockFetcher(is, "agg_met_pr_1979_CurrentYear_CONUS.nc", "precipitation_amount")
	svc := NewMetService("gridmet", sources.Default(), fetcher)

	is.Equal(svc.Source(), "gridmet")

	stack, err := svc.Query().
		Variable("pr").
		Between(testStart, testEnd).
		Within(boxExtent).
		Get(context.Background())

	is.NoErr(err)
	is.Equal(stack.Source, "gridmet")
	is.Equal(stack.Variable, "pr")
	is.Equal(stack.Units, "mm")
	is.Equal(stack.Names, []string{"2014-05-18", "2014-05-19"})
	is.Equal(stack.Grid.EPSG, 4326)
	is.Equal(stack.Grid.Width, 2)
	is.Equal(stack.Bands[0][0][0], 1.0)
	is.Equal(len(fetcher.calls), 1)
	is.Equal(fetcher.calls[0], boxExtent)
}

func TestQueryGetRequiresExtent(t *testing.T) {
	is := is.New(t)

	svc := NewMetService("gridmet", sources.Default(), mockFetcher(is, "", ""))

	_, err := svc.Query().
		Variable("pr").
		Between(testStart, testEnd).
		Get(context.Background())

	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "extent"))
}

func TestQueryGetRequiresVariable(t *testing.T) {
	is := is.New(t)

	svc := NewMetService("gridmet", sources.Default(), mockFetcher(is, "", ""))

	_, err := svc.Query().
		Between(testStart, testEnd).
		Within(boxExtent).
		Get(context.Background())

	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "variable"))
}

func TestQueryGetUnknownVariable(t *testing.T) {
	is := is.New(t)

	svc := NewMetService("gridmet", sources.Default(), mockFetcher(is, "", ""))

	_, err := svc.Query().
		Variable("snowdepth").
		Between(testStart, testEnd).
		Within(boxExtent).
		Get(context.Background())

	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "not in supported set"))
}

func TestQueryGetInvalidExtent(t *testing.T) {
	is := is.New(t)

	svc := NewMetService("gridmet", sources.Default(), mockFetcher(is, "", ""))

	_, err := svc.Query().
		Variable("pr").
		Between(testStart, testEnd).
		Within(domain.Extent{West: 10, East: -10, South: 0, North: 1}).
		Get(context.Background())

	is.True(err != nil)
}

func TestQueryGetPoint(t *testing.T) {
	is := is.New(t)

	fetcher := mockFetcher(is, "topowx", "tmax")
	svc := NewMetService("topowx", sources.Default(), fetcher)

	series, err := svc.Query().
		Variable("tmax").
		Between(testStart, testEnd).
		AtPoint(44.5, -111.5).
		GetPoint(context.Background())

	is.NoErr(err)
	is.Equal(series.Source, "topowx")
	is.Equal(series.Units, "C")
	is.Equal(series.Location, domain.NewPoint(44.5, -111.5))
	is.Equal(len(series.Values), 2)

	// nearest cell is row 1, col 1
	is.Equal(*series.Values[0].Value, 4.0)
	is.Equal(series.Values[1].Value, (*float64)(nil)) // NaN comes back as null

	// the fetched window is padded around the point
	is.Equal(len(fetcher.calls), 1)
	window := fetcher.calls[0]
	is.True(window.West < -111.5 && window.East > -111.5)
	is.True(window.South < 44.5 && window.North > 44.5)
}

func TestQueryGetPointRequiresPoint(t *testing.T) {
	is := is.New(t)

	svc := NewMetService("topowx", sources.Default(), mockFetcher(is, "", ""))

	_, err := svc.Query().
		Variable("tmax").
		Between(testStart, testEnd).
		GetPoint(context.Background())

	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "point"))
}
