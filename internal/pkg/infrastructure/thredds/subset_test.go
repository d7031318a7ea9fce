package thredds

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/matryer/is"
)

type fakeVar struct {
	values interface{}
}

func (f fakeVar) Values() (interface{}, error) {
	return f.values, nil
}

func (f fakeVar) GetSlice(begin, limit int64) (interface{}, error) {
	return f.values, nil
}

func fakeSource(vars map[string]interface{}) varSource {
	return func(name string) (varGetter, error) {
		v, ok := vars[name]
		if !ok {
			return nil, errors.New("no such variable")
		}
		return fakeVar{values: v}, nil
	}
}

var topowxEpoch = time.Date(1948, 1, 1, 0, 0, 0, 0, time.UTC)

func TestDecodeSubsetOrientsNorthUp(t *testing.T) {
	is := is.New(t)

	// ascending latitudes, so rows arrive south first
	vars := fakeSource(map[string]interface{}{
		"lat":  []float64{44.0, 44.5},
		"lon":  []float64{-112.0, -111.5},
		"time": []int32{0, 1},
		"tmax": [][][]float32{
			{{1, 2}, {3, 4}},
			{{5, 6}, {7, 8}},
		},
	})

	subset, err := decodeSubset(vars, "tmax", topowxEpoch)
	is.NoErr(err)

	is.Equal(subset.Lats, []float64{44.5, 44.0}) // northernmost latitude first
	is.Equal(subset.Data[0][0], []float64{3, 4}) // rows flipped with the latitudes
	is.Equal(subset.Data[0][1], []float64{1, 2})
	is.Equal(subset.Data[1][0], []float64{7, 8})

	is.Equal(len(subset.Days), 2)
	is.Equal(subset.Days[0], topowxEpoch)
	is.Equal(subset.Days[1], topowxEpoch.AddDate(0, 0, 1))
}

func TestDecodeSubsetReadsDayCoordinate(t *testing.T) {
	is := is.New(t)

	epoch := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

	vars := fakeSource(map[string]interface{}{
		"lat": []float32{45.5, 45.0},
		"lon": []float32{-112.0, -111.5},
		"day": []float64{41775},
		"precipitation_amount": [][][]float64{
			{{1.5, 2.5}, {3.5, 4.5}},
		},
	})

	subset, err := decodeSubset(vars, "precipitation_amount", epoch)
	is.NoErr(err)

	is.Equal(subset.Days[0], epoch.Add(41775*24*time.Hour))
	is.Equal(subset.Lats, []float64{45.5, 45.0}) // already north first, untouched
	is.Equal(subset.Data[0][0][1], 2.5)
}

func TestDecodeSubsetReplacesFillWithNaN(t *testing.T) {
	is := is.New(t)

	vars := fakeSource(map[string]interface{}{
		"lat":  []float64{44.5, 44.0},
		"lon":  []float64{-112.0, -111.5},
		"time": []int32{0},
		"tmin": [][][]float32{
			{{-32767, 2}, {3, 4}},
		},
	})

	subset, err := decodeSubset(vars, "tmin", topowxEpoch)
	is.NoErr(err)

	is.True(math.IsNaN(subset.Data[0][0][0]))
	is.Equal(subset.Data[0][0][1], 2.0)
}

func TestDecodeSubsetMissingCoordinate(t *testing.T) {
	is := is.New(t)

	vars := fakeSource(map[string]interface{}{
		"lon":  []float64{-112.0},
		"time": []int32{0},
	})

	_, err := decodeSubset(vars, "tmax", topowxEpoch)
	is.True(err != nil)
}

func TestDecodeSubsetShapeMismatch(t *testing.T) {
	is := is.New(t)

	vars := fakeSource(map[string]interface{}{
		"lat":  []float64{44.5, 44.0},
		"lon":  []float64{-112.0, -111.5},
		"time": []int32{0},
		"tmax": [][][]float32{
			{{1, 2, 3}, {4, 5, 6}},
		},
	})

	_, err := decodeSubset(vars, "tmax", topowxEpoch)
	is.True(err != nil)
}

func TestSubsetGrid(t *testing.T) {
	is := is.New(t)

	subset := &Subset{
		Lats: []float64{45.0, 44.5, 44.0},
		Lons: []float64{-112.0, -111.5},
	}

	grid := subset.Grid()
	is.Equal(grid.Width, 2)
	is.Equal(grid.Height, 3)
	is.Equal(grid.PixelWidth, 0.5)
	is.Equal(grid.PixelHeight, 0.5)
	is.Equal(grid.OriginX, -112.25)
	is.Equal(grid.OriginY, 45.25)
	is.Equal(grid.EPSG, 4326)
}

func TestSubsetAtPicksNearestCell(t *testing.T) {
	is := is.New(t)

	subset := &Subset{
		Lats: []float64{45.0, 44.5},
		Lons: []float64{-112.0, -111.5},
		Data: [][][]float64{
			{{1, 2}, {3, 4}},
			{{5, 6}, {7, 8}},
		},
	}

	is.Equal(subset.At(44.6, -111.6), []float64{4, 8})
	is.Equal(subset.At(45.1, -112.2), []float64{1, 5})
}
