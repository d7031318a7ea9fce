package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultQueryURL = "https://nationalmap.gov/epqs/pqs.php"

const feetToMeters = 0.3048

type ElevationService interface {
	Elevation(ctx context.Context, lat, lon float64) (float64, error)
}

func NewElevationService(queryURL string) ElevationService {
	return &es{
		queryURL: queryURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type es struct {
	queryURL string
	client   *http.Client
}

// epqsResponse mirrors the USGS Elevation Point Query Service payload.
type epqsResponse struct {
	Result struct {
		Query struct {
			Elevation json.Number `json:"Elevation"`
			Units     string      `json:"Units"`
		} `json:"Elevation_Query"`
	} `json:"USGS_Elevation_Point_Query_Service"`
}

// Elevation queries the national map point service and returns elevation in
// meters above sea level.
func (svc *es) Elevation(ctx context.Context, lat, lon float64) (float64, error) {
	params := url.Values{}
	params.Add("x", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Add("y", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Add("units", "Feet")
	params.Add("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", svc.queryURL, params.Encode()), nil)
	if err != nil {
		return 0, err
	}

	resp, err := svc.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("unable to query elevation service (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP error from elevation service: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var parsed epqsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("unable to parse elevation response (%w)", err)
	}

	feet, err := parsed.Result.Query.Elevation.Float64()
	if err != nil {
		return 0, fmt.Errorf("elevation response contains no numeric value (%w)", err)
	}

	// the service reports large negative sentinels where it has no data
	if feet < -999999 {
		return 0, fmt.Errorf("no elevation data at %.4f, %.4f", lat, lon)
	}

	return feet * feetToMeters, nil
}
