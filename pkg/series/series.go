package series

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

const (
	CategoryProduction = "production"
	CategoryForecast   = "forecast"

	DefaultMetric = "accuracy"

	ResourcePlant  = "plant"
	ResourceModel  = "model"
	ResourceSource = "source"

	UnitKW      = "kW"
	UnitPercent = "%"

	// daytime window, inclusive on both ends
	dayStartHour = 6
	dayEndHour   = 18
	peakHour     = 12
	peakKW       = 1000
)

// Rand is the subset of *rand.Rand the generators draw jitter from.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type defaultRand struct{}

func (defaultRand) Intn(n int) int   { return rand.Intn(n) }
func (defaultRand) Float64() float64 { return rand.Float64() }

// DefaultRand draws from the process-wide math/rand source and is safe for
// concurrent use.
var DefaultRand Rand = defaultRand{}

// Policy decides whether a series stops at the cutoff instant.
type Policy int

const (
	// PolicyForecast series cover the full requested range.
	PolicyForecast Policy = iota
	// PolicyHistorical series never extend past the cutoff instant.
	PolicyHistorical
)

// PolicyFor returns the truncation policy for a power series category label.
// Only "production" (in any case) is historical.
func PolicyFor(category string) Policy {
	if strings.EqualFold(category, CategoryProduction) {
		return PolicyHistorical
	}
	return PolicyForecast
}

// Request describes one subject's series.
type Request struct {
	StartDay time.Time
	Days     int
	Subject  string
	// Category is the power series type ("production", "forecast", ...) or the
	// metric name for metric series.
	Category string
	// ResourceKey is the JSON field the subject is reported under.
	ResourceKey string
}

// Point is a single hourly value of a generated series.
type Point struct {
	Timestamp   string
	Value       float64
	Subject     string
	ResourceKey string
	Category    string
	// CategoryKey is "type" for power points and "metric" for metric points.
	CategoryKey string
	Unit        string
}

// MarshalJSON renders the point with the subject under its resource key, e.g.
// {"date": ..., "value": ..., "plant": "SE Vis", "type": "forecast", ...}.
func (p Point) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"date":             p.Timestamp,
		"value":            p.Value,
		"measurement_unit": p.Unit,
	}
	if p.ResourceKey != "" {
		m[p.ResourceKey] = p.Subject
	}
	if p.CategoryKey != "" {
		m[p.CategoryKey] = p.Category
	}
	return json.Marshal(m)
}

// Timestamp formats a day and hour as YYYY-MM-DDTHH:00:00.
func Timestamp(day time.Time, hour int) string {
	return fmt.Sprintf("%sT%02d:00:00", day.Format(time.DateOnly), hour)
}

// BasePower is the pre-jitter production value for an hour: a parabola peaking
// at 1000 at noon and reaching 0 at hours 6 and 18.
func BasePower(hour int) float64 {
	if hour < dayStartHour || hour > dayEndHour {
		return 0
	}
	d := float64(hour - peakHour)
	return math.Round(peakKW * math.Max(0, 1-d*d/36))
}

func isDaytime(hour int) bool {
	return hour >= dayStartHour && hour <= dayEndHour
}

// walk calls fn for every hour of the requested days until fn returns false.
func walk(req Request, now time.Time, fn func(day time.Time, hour int, ts time.Time) bool) {
	loc := now.Location()
	start := time.Date(req.StartDay.Year(), req.StartDay.Month(), req.StartDay.Day(), 0, 0, 0, 0, loc)
	for offset := 0; offset < req.Days; offset++ {
		day := start.AddDate(0, 0, offset)
		for hour := 0; hour < 24; hour++ {
			ts := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			if !fn(day, hour, ts) {
				return
			}
		}
	}
}

// GeneratePower synthesizes an hourly power series in kW. Production series
// stop at the first hour after now; every other category covers the full range.
func GeneratePower(req Request, now time.Time, rng Rand) []Point {
	if req.ResourceKey == "" {
		req.ResourceKey = ResourcePlant
	}
	policy := PolicyFor(req.Category)
	var points []Point
	walk(req, now, func(day time.Time, hour int, ts time.Time) bool {
		if policy == PolicyHistorical && ts.After(now) {
			return false
		}
		var value float64
		if isDaytime(hour) {
			// jitter is in [-100, 50]
			value = math.Abs(BasePower(hour) + float64(rng.Intn(151)-100))
		}
		points = append(points, Point{
			Timestamp:   Timestamp(day, hour),
			Value:       value,
			Subject:     req.Subject,
			ResourceKey: req.ResourceKey,
			Category:    req.Category,
			CategoryKey: "type",
			Unit:        UnitKW,
		})
		return true
	})
	return points
}

// GenerateMetric synthesizes an hourly model metric series in percent. Metric
// series always stop at the first hour after now.
func GenerateMetric(req Request, now time.Time, rng Rand) []Point {
	if req.Category == "" {
		req.Category = DefaultMetric
	}
	if req.ResourceKey == "" {
		req.ResourceKey = ResourceModel
	}
	var points []Point
	walk(req, now, func(day time.Time, hour int, ts time.Time) bool {
		if ts.After(now) {
			return false
		}
		var value float64
		if isDaytime(hour) {
			value = round2(90 + uniform(rng, -5, 5))
		} else {
			value = round2(98 + uniform(rng, -1, 2))
		}
		points = append(points, Point{
			Timestamp:   Timestamp(day, hour),
			Value:       value,
			Subject:     req.Subject,
			ResourceKey: req.ResourceKey,
			Category:    req.Category,
			CategoryKey: "metric",
			Unit:        UnitPercent,
		})
		return true
	})
	return points
}

// PowerForSubjects generates one power series per subject and concatenates
// them in subject order.
func PowerForSubjects(req Request, subjects []string, now time.Time, rng Rand) []Point {
	var points []Point
	for _, subject := range subjects {
		req.Subject = subject
		points = append(points, GeneratePower(req, now, rng)...)
	}
	return points
}

// MetricForSubjects generates one metric series per subject and concatenates
// them in subject order.
func MetricForSubjects(req Request, subjects []string, now time.Time, rng Rand) []Point {
	var points []Point
	for _, subject := range subjects {
		req.Subject = subject
		points = append(points, GenerateMetric(req, now, rng)...)
	}
	return points
}

func uniform(rng Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DaysBetween returns the inclusive number of days covered by [start, end],
// i.e. the whole days elapsed plus one. Elapsed time is measured between the
// wall clocks of both ends in start's location, so a DST transition inside the
// range does not shorten it. It is zero or negative when end is more than a
// day before start.
func DaysBetween(start, end time.Time) int {
	w0 := wallClock(start)
	w1 := wallClock(end.In(start.Location()))
	return int(math.Floor(w1.Sub(w0).Hours()/24)) + 1
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
