package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/dgketchum/metio/internal/pkg/application/services/elevation"
)

func TestGetElevation(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"USGS_Elevation_Point_Query_Service":{"Elevation_Query":{"Elevation":4436.68,"Units":"Feet"}}}`))
	}))
	defer server.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/elevation?lat=42.95&lon=-112.83", nil)

	NewRetrieveElevationHandler(zerolog.Logger{}, elevation.NewElevationService(server.URL)).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusOK) // Request failed, status code not OK

	var body struct {
		Data elevationResponse `json:"data"`
	}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &body))
	is.Equal(body.Data.Units, "m")
	is.True(math.Abs(body.Data.Elevation-1352.3) < 0.1)
}

func TestGetElevationRequiresPoint(t *testing.T) {
	is := is.New(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/elevation", nil)

	NewRetrieveElevationHandler(zerolog.Logger{}, elevation.NewElevationService("http://localhost")).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusBadRequest)
}

func TestGetElevationUpstreamFailure(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/elevation?lat=42.95&lon=-112.83", nil)

	NewRetrieveElevationHandler(zerolog.Logger{}, elevation.NewElevationService(server.URL)).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusInternalServerError)
}
