package thredds

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgketchum/metio/internal/pkg/domain"
)

// NCSS fill sentinel for unpacked float grids.
const fillValue = -32767.0

// Subset is a decoded NetCDF subset. Data is indexed [day][row][col] with
// rows running north to south.
type Subset struct {
	Variable string
	Lats     []float64
	Lons     []float64
	Days     []time.Time
	Data     [][][]float64
}

// varGetter is the slice of the go-native-netcdf VarGetter interface this
// package relies on.
type varGetter interface {
	Values() (interface{}, error)
	GetSlice(begin, limit int64) (interface{}, error)
}

type varSource func(name string) (varGetter, error)

func decodeSubset(vars varSource, variable string, epoch time.Time) (*Subset, error) {
	lats, err := coordValues(vars, "lat")
	if err != nil {
		return nil, err
	}
	lons, err := coordValues(vars, "lon")
	if err != nil {
		return nil, err
	}
	if len(lats) == 0 || len(lons) == 0 {
		return nil, errors.New("subset contains no cells, requested extent may be outside dataset coverage")
	}

	offsets, err := timeValues(vars)
	if err != nil {
		return nil, err
	}
	if len(offsets) == 0 {
		return nil, errors.New("subset contains no time steps")
	}

	days := make([]time.Time, len(offsets))
	for i, d := range offsets {
		days[i] = epoch.Add(time.Duration(d*24) * time.Hour)
	}

	data, err := gridValues(vars, variable, len(days), len(lats), len(lons))
	if err != nil {
		return nil, err
	}

	s := &Subset{Variable: variable, Lats: lats, Lons: lons, Days: days, Data: data}
	s.orientNorthUp()

	return s, nil
}

// orientNorthUp flips rows when the latitude coordinate is ascending, so
// Data[t][0] is always the northernmost row.
func (s *Subset) orientNorthUp() {
	if len(s.Lats) < 2 || s.Lats[0] > s.Lats[1] {
		return
	}

	for i, j := 0, len(s.Lats)-1; i < j; i, j = i+1, j-1 {
		s.Lats[i], s.Lats[j] = s.Lats[j], s.Lats[i]
	}
	for t := range s.Data {
		rows := s.Data[t]
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
}

// Grid derives the regular grid the subset lies on. Cell size comes from
// coordinate spacing, or a single-cell fallback when the subset is 1x1.
func (s *Subset) Grid() domain.RasterGrid {
	cellW := 1.0 / 24.0
	cellH := 1.0 / 24.0
	if len(s.Lons) > 1 {
		cellW = (s.Lons[len(s.Lons)-1] - s.Lons[0]) / float64(len(s.Lons)-1)
	}
	if len(s.Lats) > 1 {
		cellH = (s.Lats[0] - s.Lats[len(s.Lats)-1]) / float64(len(s.Lats)-1)
	}

	return domain.RasterGrid{
		Width:       len(s.Lons),
		Height:      len(s.Lats),
		OriginX:     s.Lons[0] - cellW/2,
		OriginY:     s.Lats[0] + cellH/2,
		PixelWidth:  cellW,
		PixelHeight: cellH,
		EPSG:        4326,
	}
}

// At returns the timeseries of the cell nearest to the given point.
func (s *Subset) At(lat, lon float64) []float64 {
	row := nearestIndex(s.Lats, lat)
	col := nearestIndex(s.Lons, lon)

	values := make([]float64, len(s.Data))
	for t := range s.Data {
		values[t] = s.Data[t][row][col]
	}
	return values
}

func nearestIndex(coords []float64, value float64) int {
	best := 0
	bestDist := math.Abs(coords[0] - value)
	for i, c := range coords[1:] {
		if d := math.Abs(c - value); d < bestDist {
			best = i + 1
			bestDist = d
		}
	}
	return best
}

func coordValues(vars varSource, name string) ([]float64, error) {
	vg, err := vars(name)
	if err != nil {
		return nil, fmt.Errorf("subset is missing coordinate variable %s (%w)", name, err)
	}

	v, err := vg.Values()
	if err != nil {
		return nil, err
	}

	switch coords := v.(type) {
	case []float64:
		return coords, nil
	case []float32:
		out := make([]float64, len(coords))
		for i, c := range coords {
			out[i] = float64(c)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported coordinate type %T for %s", v, name)
	}
}

func timeValues(vars varSource) ([]float64, error) {
	// GridMet aggregations call the time coordinate "day", TopoWX "time".
	vg, err := vars("day")
	if err != nil {
		vg, err = vars("time")
		if err != nil {
			return nil, fmt.Errorf("subset is missing a time coordinate (%w)", err)
		}
	}

	v, err := vg.Values()
	if err != nil {
		return nil, err
	}

	switch offsets := v.(type) {
	case []float64:
		return offsets, nil
	case []float32:
		out := make([]float64, len(offsets))
		for i, o := range offsets {
			out[i] = float64(o)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(offsets))
		for i, o := range offsets {
			out[i] = float64(o)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported time coordinate type %T", v)
	}
}

func gridValues(vars varSource, variable string, nt, ny, nx int) ([][][]float64, error) {
	vg, err := vars(variable)
	if err != nil {
		return nil, fmt.Errorf("subset does not contain variable %s (%w)", variable, err)
	}

	v, err := vg.Values()
	if err != nil {
		return nil, err
	}

	data := make([][][]float64, 0, nt)

	appendBand := func(band [][]float64) error {
		if len(band) != ny || (ny > 0 && len(band[0]) != nx) {
			return fmt.Errorf("subset band shape %dx%d does not match coordinates %dx%d", len(band), len(band[0]), ny, nx)
		}
		data = append(data, band)
		return nil
	}

	switch grid := v.(type) {
	case [][][]float32:
		for _, b := range grid {
			band := make([][]float64, len(b))
			for r, row := range b {
				band[r] = make([]float64, len(row))
				for c, val := range row {
					band[r][c] = cleanValue(float64(val))
				}
			}
			if err := appendBand(band); err != nil {
				return nil, err
			}
		}
	case [][][]float64:
		for _, b := range grid {
			band := make([][]float64, len(b))
			for r, row := range b {
				band[r] = make([]float64, len(row))
				for c, val := range row {
					band[r][c] = cleanValue(val)
				}
			}
			if err := appendBand(band); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unsupported grid type %T for %s", v, variable)
	}

	if len(data) != nt {
		return nil, fmt.Errorf("subset has %d bands but %d time steps", len(data), nt)
	}

	return data, nil
}

func cleanValue(v float64) float64 {
	if v == fillValue {
		return math.NaN()
	}
	return v
}
