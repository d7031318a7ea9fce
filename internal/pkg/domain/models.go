package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Extent is a geographic bounding box in WGS84 decimal degrees.
type Extent struct {
	West  float64 `json:"west" yaml:"west"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	North float64 `json:"north" yaml:"north"`
}

func (e Extent) Valid() error {
	if e.West >= e.East {
		return fmt.Errorf("extent west (%f) must be less than east (%f)", e.West, e.East)
	}
	if e.South >= e.North {
		return fmt.Errorf("extent south (%f) must be less than north (%f)", e.South, e.North)
	}
	if e.West < -180 || e.East > 180 {
		return errors.New("extent longitudes must be within [-180, 180]")
	}
	if e.South < -90 || e.North > 90 {
		return errors.New("extent latitudes must be within [-90, 90]")
	}
	return nil
}

func (e Extent) Contains(lon, lat float64) bool {
	return lon >= e.West && lon <= e.East && lat >= e.South && lat <= e.North
}

func (e Extent) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{e.West, e.South}, Max: orb.Point{e.East, e.North}}
}

// TimePeriod is a closed interval of days. Start and End are truncated to
// midnight UTC, and Start == End means a single day.
type TimePeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewTimePeriod(start, end time.Time) TimePeriod {
	return TimePeriod{Start: midnight(start), End: midnight(end)}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (p TimePeriod) Valid() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return errors.New("time period start and end must both be set")
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("time period end (%s) precedes start (%s)",
			p.End.Format("2006-01-02"), p.Start.Format("2006-01-02"))
	}
	return nil
}

func (p TimePeriod) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

func (p TimePeriod) Dates() []time.Time {
	dates := make([]time.Time, 0, p.Days())
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// RasterGrid describes a regular north-up grid: origin is the outer corner of
// the upper left pixel and rows run north to south. PixelHeight is positive.
type RasterGrid struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	OriginX     float64 `json:"originX"`
	OriginY     float64 `json:"originY"`
	PixelWidth  float64 `json:"pixelWidth"`
	PixelHeight float64 `json:"pixelHeight"`
	EPSG        int     `json:"epsg"`
}

func (g RasterGrid) Valid() error {
	if g.Width <= 0 || g.Height <= 0 {
		return errors.New("raster grid must have positive width and height")
	}
	if g.PixelWidth <= 0 || g.PixelHeight <= 0 {
		return errors.New("raster grid must have positive pixel size")
	}
	return nil
}

// CellCenter returns the projected coordinates of the center of cell
// (col, row), counted from the upper left.
func (g RasterGrid) CellCenter(col, row int) (x, y float64) {
	x = g.OriginX + (float64(col)+0.5)*g.PixelWidth
	y = g.OriginY - (float64(row)+0.5)*g.PixelHeight
	return
}

// Bounds returns the outer edges of the grid in its own coordinate system.
func (g RasterGrid) Bounds() (minX, minY, maxX, maxY float64) {
	minX = g.OriginX
	maxY = g.OriginY
	maxX = g.OriginX + float64(g.Width)*g.PixelWidth
	minY = g.OriginY - float64(g.Height)*g.PixelHeight
	return
}

func (g RasterGrid) Geographic() bool {
	return g.EPSG == 4326
}

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func NewPoint(latitude, longitude float64) Point {
	return Point{Latitude: latitude, Longitude: longitude}
}

type TimeValue struct {
	When  time.Time `json:"when"`
	Value *float64  `json:"value"`
}

// TimeSeries holds daily values for a single variable at a single point.
type TimeSeries struct {
	Source   string      `json:"source"`
	Variable string      `json:"variable"`
	Units    string      `json:"units"`
	Location Point       `json:"location"`
	Values   []TimeValue `json:"values"`
}

// Station is a weather station as published in the USBR Agrimet station map.
type Station struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	State      string  `json:"state"`
	Program    string  `json:"program"`
	Region     string  `json:"region"`
	Location   Point   `json:"location"`
	DistanceKM float64 `json:"distanceKm,omitempty"`
}
