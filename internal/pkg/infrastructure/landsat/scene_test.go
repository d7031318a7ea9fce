package landsat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

const mtlFixture = `GROUP = L1_METADATA_FILE
  GROUP = METADATA_FILE_INFO
    ORIGIN = "Image courtesy of the U.S. Geological Survey"
    LANDSAT_SCENE_ID = "LC80390272014138LGN01"
    LANDSAT_PRODUCT_ID = "LC08_L1TP_039027_20140518_20170307_01_T1"
  END_GROUP = METADATA_FILE_INFO
  GROUP = PRODUCT_METADATA
    SPACECRAFT_ID = "LANDSAT_8"
    WRS_PATH = 39
    WRS_ROW = 27
    DATE_ACQUIRED = 2014-05-18
    CORNER_UL_LAT_PRODUCT = 46.00069
    CORNER_UL_LON_PRODUCT = -113.05985
    CORNER_UR_LAT_PRODUCT = 46.03040
    CORNER_UR_LON_PRODUCT = -110.05774
    CORNER_LL_LAT_PRODUCT = 43.88065
    CORNER_LL_LON_PRODUCT = -113.02703
    CORNER_LR_LAT_PRODUCT = 43.90772
    CORNER_LR_LON_PRODUCT = -110.14017
    CORNER_UL_PROJECTION_X_PRODUCT = 495300.000
    CORNER_UL_PROJECTION_Y_PRODUCT = 5094900.000
    CORNER_UR_PROJECTION_X_PRODUCT = 727500.000
    CORNER_UR_PROJECTION_Y_PRODUCT = 5094900.000
    CORNER_LL_PROJECTION_X_PRODUCT = 495300.000
    CORNER_LL_PROJECTION_Y_PRODUCT = 4860900.000
    CORNER_LR_PROJECTION_X_PRODUCT = 727500.000
    CORNER_LR_PROJECTION_Y_PRODUCT = 4860900.000
    REFLECTIVE_LINES = 7800
    REFLECTIVE_SAMPLES = 7740
  END_GROUP = PRODUCT_METADATA
  GROUP = PROJECTION_PARAMETERS
    MAP_PROJECTION = "UTM"
    UTM_ZONE = 12
    GRID_CELL_SIZE_REFLECTIVE = 30.00
  END_GROUP = PROJECTION_PARAMETERS
END_GROUP = L1_METADATA_FILE
END
`

func TestIsValidSceneID(t *testing.T) {
	is := is.New(t)

	is.True(IsValidSceneID("LC08_L1TP_039027_20140518_20170307_01_T1"))
	is.True(IsValidSceneID("LC80390272014138LGN01"))
	is.True(!IsValidSceneID("LC08_039027_20140518"))
	is.True(!IsValidSceneID("not-a-scene"))
}

func TestMTLURL(t *testing.T) {
	is := is.New(t)

	u, err := MTLURL("https://landsat-pds.s3.amazonaws.com", "LC08_L1TP_039027_20140518_20170307_01_T1")
	is.NoErr(err)
	is.Equal(u, "https://landsat-pds.s3.amazonaws.com/c1/L8/039/027/LC08_L1TP_039027_20140518_20170307_01_T1/LC08_L1TP_039027_20140518_20170307_01_T1_MTL.txt")

	_, err = MTLURL("https://landsat-pds.s3.amazonaws.com", "LC80390272014138LGN01")
	is.True(err != nil) // legacy scene IDs carry no collection-1 path
}

func TestParseMTL(t *testing.T) {
	is := is.New(t)

	scene, err := ParseMTL(strings.NewReader(mtlFixture))
	is.NoErr(err)

	is.Equal(scene.ProductID, "LC08_L1TP_039027_20140518_20170307_01_T1")
	is.Equal(scene.SceneID, "LC80390272014138LGN01")
	is.Equal(scene.SpacecraftID, "LANDSAT_8")
	is.Equal(scene.WRSPath, 39)
	is.Equal(scene.WRSRow, 27)
	is.Equal(scene.UTMZone, 12)
	is.Equal(scene.Samples, 7740)
	is.Equal(scene.Lines, 7800)
	is.Equal(scene.CellSize, 30.0)
	is.Equal(scene.DateAcquired, time.Date(2014, 5, 18, 0, 0, 0, 0, time.UTC))

	is.Equal(scene.UL.X, 495300.0)
	is.Equal(scene.UL.Y, 5094900.0)
	is.Equal(scene.LR.Lon, -110.14017)
}

func TestParseMTLMissingField(t *testing.T) {
	is := is.New(t)

	truncated := strings.Replace(mtlFixture, "UTM_ZONE = 12", "", 1)
	_, err := ParseMTL(strings.NewReader(truncated))
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "UTM_ZONE"))
}

func TestSceneGrid(t *testing.T) {
	is := is.New(t)

	scene, err := ParseMTL(strings.NewReader(mtlFixture))
	is.NoErr(err)

	is.Equal(scene.EPSG(), 32612) // northern hemisphere zone 12

	grid := scene.Grid()
	is.Equal(grid.Width, 7740)
	is.Equal(grid.Height, 7800)
	is.Equal(grid.PixelWidth, 30.0)
	// MTL corners are pixel centers, grid origin is the outer corner
	is.Equal(grid.OriginX, 495285.0)
	is.Equal(grid.OriginY, 5094915.0)
}

func TestSceneExtent(t *testing.T) {
	is := is.New(t)

	scene, err := ParseMTL(strings.NewReader(mtlFixture))
	is.NoErr(err)

	extent := scene.Extent()
	is.NoErr(extent.Valid())
	is.Equal(extent.West, -113.05985)
	is.Equal(extent.North, 46.03040)
	is.Equal(extent.South, 43.88065)
	is.Equal(extent.East, -110.05774)

	center := scene.Center()
	is.True(center.Latitude > 44.9 && center.Latitude < 45.0)
}

func TestFetchMTL(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mtlFixture))
	}))
	defer server.Close()

	scene, err := FetchMTL(context.Background(), http.DefaultClient, server.URL+"/LC08_MTL.txt")
	is.NoErr(err)
	is.Equal(scene.UTMZone, 12)
}

func TestFetchMTLNotFound(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := FetchMTL(context.Background(), http.DefaultClient, server.URL+"/LC08_MTL.txt")
	is.True(err != nil)
}
