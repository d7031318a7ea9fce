package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"

	"github.com/dgketchum/metio/internal/pkg/domain"
)

// Stack is a set of bands sharing one grid, typically one band per day.
type Stack struct {
	Source   string
	Variable string
	Units    string
	Names    []string
	Grid     domain.RasterGrid
	Bands    [][][]float64
}

type Method string

const (
	Bilinear Method = "bilinear"
	Nearest  Method = "nearest"
)

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case Bilinear, Nearest:
		return Method(s), nil
	case "":
		return Bilinear, nil
	default:
		return "", fmt.Errorf("resampling method %s not in supported set [bilinear, nearest]", s)
	}
}

func proj4For(epsg int) (string, error) {
	switch {
	case epsg == 4326:
		return "+proj=longlat +datum=WGS84 +no_defs", nil
	case epsg > 32600 && epsg <= 32660:
		return fmt.Sprintf("+proj=utm +zone=%d +datum=WGS84 +units=m +no_defs", epsg-32600), nil
	case epsg > 32700 && epsg <= 32760:
		return fmt.Sprintf("+proj=utm +zone=%d +south +datum=WGS84 +units=m +no_defs", epsg-32700), nil
	default:
		return "", fmt.Errorf("unsupported coordinate system EPSG:%d", epsg)
	}
}

func newTransform(fromEPSG, toEPSG int) (proj.Transformer, error) {
	src4, err := proj4For(fromEPSG)
	if err != nil {
		return nil, err
	}
	dst4, err := proj4For(toEPSG)
	if err != nil {
		return nil, err
	}

	srcSR, err := proj.Parse(src4)
	if err != nil {
		return nil, fmt.Errorf("unable to parse source spatial reference (%w)", err)
	}
	dstSR, err := proj.Parse(dst4)
	if err != nil {
		return nil, fmt.Errorf("unable to parse target spatial reference (%w)", err)
	}

	return srcSR.NewTransform(dstSR)
}

// Warp resamples every band of src onto the target grid. Each target pixel
// center is projected back into the source coordinate system and sampled
// there; pixels falling outside the source grid come out NaN.
func Warp(src *Stack, target domain.RasterGrid, method Method) (*Stack, error) {
	if err := target.Valid(); err != nil {
		return nil, err
	}

	var inverse proj.Transformer
	if target.EPSG != src.Grid.EPSG {
		var err error
		inverse, err = newTransform(target.EPSG, src.Grid.EPSG)
		if err != nil {
			return nil, err
		}
	}

	out := &Stack{
		Source:   src.Source,
		Variable: src.Variable,
		Units:    src.Units,
		Names:    src.Names,
		Grid:     target,
		Bands:    make([][][]float64, len(src.Bands)),
	}

	for b, band := range src.Bands {
		warped := make([][]float64, target.Height)
		for row := 0; row < target.Height; row++ {
			warped[row] = make([]float64, target.Width)
			for col := 0; col < target.Width; col++ {
				x, y := target.CellCenter(col, row)
				if inverse != nil {
					var err error
					x, y, err = inverse(x, y)
					if err != nil {
						warped[row][col] = math.NaN()
						continue
					}
				}
				warped[row][col] = sample(band, src.Grid, x, y, method)
			}
		}
		out.Bands[b] = warped
	}

	return out, nil
}

func sample(band [][]float64, grid domain.RasterGrid, x, y float64, method Method) float64 {
	// fractional cell coordinates, relative to cell centers
	fc := (x-grid.OriginX)/grid.PixelWidth - 0.5
	fr := (grid.OriginY-y)/grid.PixelHeight - 0.5

	if method == Nearest {
		col := int(math.Round(fc))
		row := int(math.Round(fr))
		if col < 0 || col >= grid.Width || row < 0 || row >= grid.Height {
			return math.NaN()
		}
		return band[row][col]
	}

	c0 := int(math.Floor(fc))
	r0 := int(math.Floor(fr))
	dc := fc - float64(c0)
	dr := fr - float64(r0)

	v00 := cellAt(band, grid, r0, c0)
	v01 := cellAt(band, grid, r0, c0+1)
	v10 := cellAt(band, grid, r0+1, c0)
	v11 := cellAt(band, grid, r0+1, c0+1)

	// fall back to nearest at the grid edge rather than bleeding NaN inward
	if math.IsNaN(v00) || math.IsNaN(v01) || math.IsNaN(v10) || math.IsNaN(v11) {
		return sample(band, grid, x, y, Nearest)
	}

	top := v00*(1-dc) + v01*dc
	bottom := v10*(1-dc) + v11*dc
	return top*(1-dr) + bottom*dr
}

func cellAt(band [][]float64, grid domain.RasterGrid, row, col int) float64 {
	if col < 0 || col >= grid.Width || row < 0 || row >= grid.Height {
		return math.NaN()
	}
	return band[row][col]
}
