package server

import (
	"net/http"
	"strconv"

	"github.com/solarforecast/solarforecast/pkg/series"
)

var forecastSources = []struct {
	name     string
	category string
}{
	{"Model A", series.CategoryForecast},
	{"Model B", series.CategoryForecast},
	{"Production", series.CategoryProduction},
}

type coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type plantOverview struct {
	ID                    int            `json:"id"`
	Name                  string         `json:"name"`
	Coordinates           coordinates    `json:"coordinates"`
	CurrentProduction     float64        `json:"current_production"`
	InstalledCapacity     float64        `json:"installed_capacity"`
	UtilizationPercentage float64        `json:"utilization_percentage"`
	MeasurementUnit       string         `json:"measurement_unit"`
	Forecast              []series.Point `json:"forecast"`
}

// overviewPlants are the plants shown on the dashboard map.
var overviewPlants = []plantOverview{
	{
		ID:                    1,
		Name:                  "SE Vis",
		Coordinates:           coordinates{Lat: 43.03823574273269, Lng: 16.150850402782556},
		CurrentProduction:     0.82,
		InstalledCapacity:     1.44,
		UtilizationPercentage: 57,
		MeasurementUnit:       "MW",
	},
	{
		ID:                    2,
		Name:                  "SE Drava",
		Coordinates:           coordinates{Lat: 45.52121150403985, Lng: 18.664564092580623},
		CurrentProduction:     0.58,
		InstalledCapacity:     0.98,
		UtilizationPercentage: 59,
		MeasurementUnit:       "MW",
	},
	{
		ID:                    3,
		Name:                  "SE Kaštelir",
		Coordinates:           coordinates{Lat: 45.328141, Lng: 13.675503},
		CurrentProduction:     0.49,
		InstalledCapacity:     1,
		UtilizationPercentage: 49,
		MeasurementUnit:       "MW",
	},
}

// nonNil keeps empty series encoding as [] instead of null.
func nonNil(points []series.Point) []series.Point {
	if points == nil {
		return []series.Point{}
	}
	return points
}

// handleProductionData returns yesterday's production followed by a three day
// forecast starting today for every dashboard plant.
func (s *Server) handleProductionData(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	today := truncateDay(now)

	production := series.PowerForSubjects(series.Request{
		StartDay:    today.AddDate(0, 0, -1),
		Days:        1,
		Category:    series.CategoryProduction,
		ResourceKey: series.ResourcePlant,
	}, s.dashboardPlants, now, s.rng)
	forecast := series.PowerForSubjects(series.Request{
		StartDay:    today,
		Days:        3,
		Category:    series.CategoryForecast,
		ResourceKey: series.ResourcePlant,
	}, s.dashboardPlants, now, s.rng)

	writeJSON(w, http.StatusOK, nonNil(append(production, forecast...)))
}

func (s *Server) handlePlantOverview(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	today := truncateDay(now)

	plants := make([]plantOverview, len(overviewPlants))
	for i, p := range overviewPlants {
		p.Forecast = nonNil(series.GeneratePower(series.Request{
			StartDay:    today,
			Days:        1,
			Subject:     p.Name,
			Category:    series.CategoryForecast,
			ResourceKey: series.ResourcePlant,
		}, now, s.rng))
		plants[i] = p
	}

	writeJSON(w, http.StatusOK, plants)
}

// handleForecasts returns the model forecasts and measured production for a
// plant over the requested range.
func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	if _, err := strconv.Atoi(r.PathValue("plant_id")); err != nil {
		writeJSONError(w, "invalid plant id", http.StatusBadRequest)
		return
	}
	now := s.now()
	start, end, err := parseDateRange(r, now)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	days := series.DaysBetween(start, end)
	var points []series.Point
	for _, src := range forecastSources {
		points = append(points, series.GeneratePower(series.Request{
			StartDay:    start,
			Days:        days,
			Subject:     src.name,
			Category:    src.category,
			ResourceKey: series.ResourceSource,
		}, now, s.rng)...)
	}

	writeJSON(w, http.StatusOK, nonNil(points))
}

// handleMetrics returns a quality metric series for a model and, for
// comparison, for every model listed in other_models.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if _, err := strconv.Atoi(r.PathValue("model_id")); err != nil {
		writeJSONError(w, "invalid model id", http.StatusBadRequest)
		return
	}
	now := s.now()
	start, end, err := parseDateRange(r, now)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = series.DefaultMetric
	}

	subjects := []string{"Model"}
	for _, id := range r.URL.Query()["other_models"] {
		if id != "" {
			subjects = append(subjects, "Model"+id)
		}
	}

	points := series.MetricForSubjects(series.Request{
		StartDay:    start,
		Days:        series.DaysBetween(start, end),
		Category:    metric,
		ResourceKey: series.ResourceModel,
	}, subjects, now, s.rng)

	writeJSON(w, http.StatusOK, nonNil(points))
}
