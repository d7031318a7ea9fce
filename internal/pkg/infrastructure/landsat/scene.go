package landsat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/dgketchum/metio/internal/pkg/domain"
)

var (
	// Collection-1 product IDs, e.g. LC08_L1TP_039027_20140518_20170307_01_T1
	productIDPattern = regexp.MustCompile(`^L[COTEM]0[578]_L1[A-Z]{2}_(\d{3})(\d{3})_\d{8}_\d{8}_\d{2}_(RT|T1|T2)$`)
	// Legacy scene IDs, e.g. LC80390272014138LGN01
	sceneIDPattern = regexp.MustCompile(`^L[COTEM][578]\d{13}[A-Z]{3}\d{2}$`)
)

func IsValidSceneID(id string) bool {
	return productIDPattern.MatchString(id) || sceneIDPattern.MatchString(id)
}

// MTLURL returns the location of a scene's MTL metadata file in the AWS
// Landsat collection-1 archive.
func MTLURL(host, productID string) (string, error) {
	m := productIDPattern.FindStringSubmatch(productID)
	if m == nil {
		return "", fmt.Errorf("%s is not a valid Landsat collection-1 product ID", productID)
	}
	path, row := m[1], m[2]
	return fmt.Sprintf("%s/c1/L8/%s/%s/%s/%s_MTL.txt", host, path, row, productID, productID), nil
}

// Corner is a scene corner in both projected and geographic coordinates.
type Corner struct {
	X, Y     float64
	Lat, Lon float64
}

// Scene holds the subset of Landsat MTL metadata needed to reproduce the
// scene's grid.
type Scene struct {
	SpacecraftID string
	ProductID    string
	SceneID      string
	WRSPath      int
	WRSRow       int
	DateAcquired time.Time

	UTMZone  int
	CellSize float64
	Samples  int
	Lines    int

	UL, UR, LL, LR Corner
}

// ParseMTL reads Landsat "KEY = VALUE" metadata text.
func ParseMTL(r io.Reader) (*Scene, error) {
	values := map[string]string{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	s := &Scene{
		SpacecraftID: values["SPACECRAFT_ID"],
		ProductID:    values["LANDSAT_PRODUCT_ID"],
		SceneID:      values["LANDSAT_SCENE_ID"],
	}

	var err error
	geti := func(key string) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = strconv.Atoi(values[key])
		if err != nil {
			err = fmt.Errorf("MTL field %s is missing or malformed (%w)", key, err)
		}
		return v
	}
	getf := func(key string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(values[key], 64)
		if err != nil {
			err = fmt.Errorf("MTL field %s is missing or malformed (%w)", key, err)
		}
		return v
	}

	s.WRSPath = geti("WRS_PATH")
	s.WRSRow = geti("WRS_ROW")
	s.UTMZone = geti("UTM_ZONE")
	s.Samples = geti("REFLECTIVE_SAMPLES")
	s.Lines = geti("REFLECTIVE_LINES")
	s.CellSize = getf("GRID_CELL_SIZE_REFLECTIVE")

	for _, c := range []struct {
		name   string
		corner *Corner
	}{
		{"UL", &s.UL}, {"UR", &s.UR}, {"LL", &s.LL}, {"LR", &s.LR},
	} {
		c.corner.X = getf(fmt.Sprintf("CORNER_%s_PROJECTION_X_PRODUCT", c.name))
		c.corner.Y = getf(fmt.Sprintf("CORNER_%s_PROJECTION_Y_PRODUCT", c.name))
		c.corner.Lat = getf(fmt.Sprintf("CORNER_%s_LAT_PRODUCT", c.name))
		c.corner.Lon = getf(fmt.Sprintf("CORNER_%s_LON_PRODUCT", c.name))
	}

	if err != nil {
		return nil, err
	}

	if acquired, ok := values["DATE_ACQUIRED"]; ok {
		s.DateAcquired, err = time.Parse("2006-01-02", acquired)
		if err != nil {
			return nil, fmt.Errorf("MTL field DATE_ACQUIRED is malformed (%w)", err)
		}
	}

	return s, nil
}

// FetchMTL retrieves and parses scene metadata from a remote archive.
func FetchMTL(ctx context.Context, client *http.Client, mtlURL string) (*Scene, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mtlURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error when fetching MTL metadata: %d", resp.StatusCode)
	}

	return ParseMTL(resp.Body)
}

// EPSG returns the scene's projected coordinate system, northern or southern
// UTM by scene center latitude.
func (s *Scene) EPSG() int {
	if s.Center().Latitude < 0 {
		return 32700 + s.UTMZone
	}
	return 32600 + s.UTMZone
}

// Grid derives the scene's raster grid. MTL corner coordinates locate pixel
// centers, so the origin backs off by half a cell.
func (s *Scene) Grid() domain.RasterGrid {
	return domain.RasterGrid{
		Width:       s.Samples,
		Height:      s.Lines,
		OriginX:     s.UL.X - s.CellSize/2,
		OriginY:     s.UL.Y + s.CellSize/2,
		PixelWidth:  s.CellSize,
		PixelHeight: s.CellSize,
		EPSG:        s.EPSG(),
	}
}

// Center approximates the scene center the way the agrimet station search
// expects it, from the product corner coordinates.
func (s *Scene) Center() domain.Point {
	lat := (s.LL.Lat + s.UL.Lat) / 2
	lon := (s.LL.Lon + s.LR.Lon) / 2
	return domain.NewPoint(lat, lon)
}

// Footprint returns the scene outline in geographic coordinates.
func (s *Scene) Footprint() orb.Polygon {
	ring := orb.Ring{
		{s.UL.Lon, s.UL.Lat},
		{s.UR.Lon, s.UR.Lat},
		{s.LR.Lon, s.LR.Lat},
		{s.LL.Lon, s.LL.Lat},
		{s.UL.Lon, s.UL.Lat},
	}
	return orb.Polygon{ring}
}

// Extent returns the geographic bounding box of the scene footprint.
func (s *Scene) Extent() domain.Extent {
	b := s.Footprint().Bound()
	return domain.Extent{West: b.Min[0], South: b.Min[1], East: b.Max[0], North: b.Max[1]}
}
