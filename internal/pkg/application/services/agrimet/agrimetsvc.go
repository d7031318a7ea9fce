package agrimet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/dgketchum/metio/internal/pkg/domain"
)

const (
	DefaultStationInfoURL = "https://www.usbr.gov/pn/agrimet/agrimetmap/usbr_map.json"
	DefaultDailyURL       = "https://www.usbr.gov/pn-bin/agrimet.pl"

	earthRadiusKM = 6371.0
)

// Parameter describes one Agrimet weather parameter after conversion to
// metric units.
type Parameter struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Units       string `json:"units"`
}

var Parameters = []Parameter{
	{"et", "Evapotranspiration Kimberly-Penman", "mm"},
	{"etos", "Evapotranspiration ASCE-EWRI Grass", "mm"},
	{"etrs", "Evapotranspiration ASCE-EWRI Alfalfa", "mm"},
	{"mm", "Mean Daily Air Temperature", "C"},
	{"mn", "Minimum Daily Air Temperature", "C"},
	{"mx", "Maximum Daily Air Temperature", "C"},
	{"pc", "Accumulated Precipitation Since Recharge/Reset", "mm"},
	{"pp", "Daily (24 hour) Precipitation", "mm"},
	{"pu", "Accumulated Water Year Precipitation", "mm"},
	{"sr", "Daily Global Solar Radiation", "MJ m-2"},
	{"ta", "Mean Daily Humidity", "%"},
	{"tg", "Growing Degree Days", "base 50F"},
	{"ua", "Daily Average Wind Speed", "m s-1"},
	{"ud", "Daily Average Wind Direction", "deg az"},
	{"wg", "Daily Peak Wind Gust", "m s-1"},
	{"wr", "Daily Wind Run", "m"},
	{"ym", "Mean Daily Dewpoint Temperature", "C"},
}

// toMetric converts a parameter value from the imperial units the archive
// reports to the metric units in Parameters.
func toMetric(code string, v float64) float64 {
	switch code {
	case "et", "etos", "etrs", "pc", "pp", "pu":
		return v * 25.4 // in to mm
	case "mm", "mn", "mx", "ym":
		return (v - 32) * 5 / 9 // F to C
	case "ua", "wg":
		return v * 0.44704 // mph to m s-1
	case "wr":
		return v * 1609.34 // mi to m
	case "sr":
		return v / 23.900574 // Langleys to MJ m-2
	default:
		return v
	}
}

// DailyRecord holds one day of converted station observations keyed by
// parameter code.
type DailyRecord struct {
	Date   time.Time          `json:"date"`
	Values map[string]float64 `json:"values"`
}

type AgrimetService interface {
	Stations(ctx context.Context) ([]domain.Station, error)
	RankedStations(ctx context.Context, lat, lon float64) ([]domain.Station, error)
	ClosestStation(ctx context.Context, lat, lon float64) (domain.Station, error)
	FetchDaily(ctx context.Context, stationID string, period domain.TimePeriod) ([]DailyRecord, error)
}

func NewAgrimetService(stationInfoURL, dailyURL string) AgrimetService {
	return &as{
		stationInfoURL: stationInfoURL,
		dailyURL:       dailyURL,
		client:         &http.Client{Timeout: 30 * time.Second},
	}
}

type as struct {
	stationInfoURL string
	dailyURL       string
	client         *http.Client
}

func (svc *as) Stations(ctx context.Context) ([]domain.Station, error) {
	body, err := svc.get(ctx, svc.stationInfoURL)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch station map (%w)", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse station map (%w)", err)
	}

	stations := make([]domain.Station, 0, len(fc.Features))
	for _, f := range fc.Features {
		point, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		s := domain.Station{
			Location: domain.NewPoint(point.Lat(), point.Lon()),
		}
		if s.ID, ok = f.Properties["siteid"].(string); !ok {
			continue
		}
		s.Title, _ = f.Properties["title"].(string)
		s.State, _ = f.Properties["state"].(string)
		s.Program, _ = f.Properties["program"].(string)
		s.Region, _ = f.Properties["region"].(string)
		stations = append(stations, s)
	}

	return stations, nil
}

func (svc *as) RankedStations(ctx context.Context, lat, lon float64) ([]domain.Station, error) {
	stations, err := svc.Stations(ctx)
	if err != nil {
		return nil, err
	}
	if len(stations) == 0 {
		return nil, fmt.Errorf("station map at %s contains no stations", svc.stationInfoURL)
	}

	for i := range stations {
		stations[i].DistanceKM = haversineKM(lat, lon, stations[i].Location.Latitude, stations[i].Location.Longitude)
	}

	sort.Slice(stations, func(i, j int) bool {
		return stations[i].DistanceKM < stations[j].DistanceKM
	})

	return stations, nil
}

func (svc *as) ClosestStation(ctx context.Context, lat, lon float64) (domain.Station, error) {
	ranked, err := svc.RankedStations(ctx, lat, lon)
	if err != nil {
		return domain.Station{}, err
	}
	return ranked[0], nil
}

// FetchDaily retrieves the station's daily archive covering the period and
// converts it to metric units.
func (svc *as) FetchDaily(ctx context.Context, stationID string, period domain.TimePeriod) ([]DailyRecord, error) {
	if err := period.Valid(); err != nil {
		return nil, err
	}

	back := int(time.Since(period.Start).Hours()/24) + 1
	if back < period.Days() {
		back = period.Days()
	}

	params := url.Values{}
	params.Add("cbtt", stationID)
	params.Add("interval", "daily")
	params.Add("format", "2")
	params.Add("back", strconv.Itoa(back))

	body, err := svc.get(ctx, fmt.Sprintf("%s?%s", svc.dailyURL, params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("unable to fetch daily data for station %s (%w)", stationID, err)
	}

	records, err := parseDaily(stationID, body)
	if err != nil {
		return nil, fmt.Errorf("unable to parse daily data for station %s (%w)", stationID, err)
	}

	within := make([]DailyRecord, 0, len(records))
	for _, rec := range records {
		if rec.Date.Before(period.Start) || rec.Date.After(period.End) {
			continue
		}
		within = append(within, rec)
	}

	return within, nil
}

func (svc *as) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := svc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

var dailyDateLayouts = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

func parseDailyDate(s string) (time.Time, error) {
	for _, layout := range dailyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date could not be parsed by any expected layout: `%s`", s)
}

// parseDaily reads the archive's CSV table. Column headers arrive as
// <station>_<code>; values that fail to parse are dropped the way the
// original archive marks missing data.
func parseDaily(stationID string, body []byte) ([]DailyRecord, error) {
	reader := csv.NewReader(strings.NewReader(string(body)))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var codes []string
	records := make([]DailyRecord, 0)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			continue
		}

		if codes == nil {
			first := strings.ToLower(strings.TrimSpace(row[0]))
			if first != "datetime" && first != "date" {
				continue
			}
			codes = make([]string, len(row))
			for i, col := range row[1:] {
				code := strings.ToLower(strings.TrimSpace(col))
				code = strings.TrimPrefix(code, strings.ToLower(stationID)+"_")
				codes[i+1] = code
			}
			continue
		}

		date, err := parseDailyDate(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}

		rec := DailyRecord{Date: date, Values: map[string]float64{}}
		for i, cell := range row[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			rec.Values[codes[i+1]] = toMetric(codes[i+1], v)
		}
		records = append(records, rec)
	}

	if codes == nil {
		return nil, fmt.Errorf("response contains no header row")
	}

	return records, nil
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
