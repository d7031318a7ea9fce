package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dgketchum/metio/internal/pkg/domain"
)

var tracer = otel.Tracer("metio/api")

func recordErrorAndEndSpan(err error, span trace.Span) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func getPointFromURL(r *http.Request) (float64, float64, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid or missing lat parameter")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid or missing lon parameter")
	}
	return lat, lon, nil
}

func getExtentFromURL(r *http.Request) (domain.Extent, error) {
	bbox := r.URL.Query().Get("bbox")
	if bbox == "" {
		return domain.Extent{}, nil
	}

	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return domain.Extent{}, fmt.Errorf("bbox must be west,south,east,north")
	}

	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Extent{}, fmt.Errorf("bbox must be west,south,east,north")
		}
		vals[i] = v
	}

	extent := domain.Extent{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	return extent, extent.Valid()
}

func getPeriodFromURL(r *http.Request) (domain.TimePeriod, error) {
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		return domain.TimePeriod{}, fmt.Errorf("invalid or missing start parameter, expected YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		return domain.TimePeriod{}, fmt.Errorf("invalid or missing end parameter, expected YYYY-MM-DD")
	}

	period := domain.NewTimePeriod(start, end)
	return period, period.Valid()
}
