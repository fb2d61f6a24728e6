package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/solarforecast/solarforecast/pkg/storage/storagemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countBy(points []map[string]any, key string) map[string]int {
	counts := map[string]int{}
	for _, p := range points {
		if v, ok := p[key].(string); ok {
			counts[v]++
		}
	}
	return counts
}

func TestProductionData(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})
	w := serve(srv, http.MethodGet, "/dashboard/production_data", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var points []map[string]any
	decodeBody(t, w, &points)

	// yesterday is entirely in the past so production is not cut short
	require.Len(t, points, 2*24+2*3*24)
	assert.Equal(t, map[string]int{"production": 48, "forecast": 144}, countBy(points, "type"))

	first := points[0]
	assert.Equal(t, "2024-01-09T00:00:00", first["date"])
	assert.Equal(t, "SE Vis", first["plant"])
	assert.Equal(t, "production", first["type"])
	assert.Equal(t, "kW", first["measurement_unit"])
	assert.Equal(t, "SE Drava", points[24]["plant"])

	forecast := points[48]
	assert.Equal(t, "2024-01-10T00:00:00", forecast["date"])
	assert.Equal(t, "SE Vis", forecast["plant"])
	assert.Equal(t, "forecast", forecast["type"])
	assert.Equal(t, "2024-01-12T23:00:00", points[48+71]["date"])
}

func TestPlantOverview(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})
	w := serve(srv, http.MethodGet, "/dashboard/plant_overview", "")
	require.Equal(t, http.StatusOK, w.Code)

	var plants []struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		Coordinates struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"coordinates"`
		InstalledCapacity     float64          `json:"installed_capacity"`
		UtilizationPercentage float64          `json:"utilization_percentage"`
		MeasurementUnit       string           `json:"measurement_unit"`
		Forecast              []map[string]any `json:"forecast"`
	}
	decodeBody(t, w, &plants)
	require.Len(t, plants, 3)

	assert.Equal(t, "SE Vis", plants[0].Name)
	assert.Equal(t, 1.44, plants[0].InstalledCapacity)
	assert.Equal(t, float64(57), plants[0].UtilizationPercentage)
	assert.Equal(t, "SE Kaštelir", plants[2].Name)
	assert.InDelta(t, 45.328141, plants[2].Coordinates.Lat, 1e-9)
	for _, p := range plants {
		assert.Equal(t, "MW", p.MeasurementUnit)
		require.Len(t, p.Forecast, 24, p.Name)
		assert.Equal(t, p.Name, p.Forecast[0]["plant"])
		assert.Equal(t, "forecast", p.Forecast[0]["type"])
		assert.Equal(t, "2024-01-10T00:00:00", p.Forecast[0]["date"])
	}

	// the package-level items must not be mutated by requests
	for _, p := range overviewPlants {
		assert.Nil(t, p.Forecast)
	}
}

func TestForecasts(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})

	t.Run("Default Range", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/forecasts/1", "")
		require.Equal(t, http.StatusOK, w.Code)

		var points []map[string]any
		decodeBody(t, w, &points)

		// four days for each model, production stops at 05:00 today
		counts := countBy(points, "source")
		assert.Equal(t, map[string]int{"Model A": 96, "Model B": 96, "Production": 6}, counts)
		assert.Equal(t, "2024-01-10T05:00:00", points[len(points)-1]["date"])
		assert.Equal(t, "production", points[len(points)-1]["type"])
		assert.Equal(t, "forecast", points[0]["type"])
	})

	t.Run("Explicit Past Range", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/forecasts/1?start=2024-01-08+00:00:00&end=2024-01-09T12:00:00", "")
		require.Equal(t, http.StatusOK, w.Code)

		var points []map[string]any
		decodeBody(t, w, &points)
		assert.Equal(t, map[string]int{"Model A": 48, "Model B": 48, "Production": 48}, countBy(points, "source"))
		assert.Equal(t, "2024-01-08T00:00:00", points[0]["date"])
	})

	t.Run("End Before Start", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/forecasts/1?start=2024-01-08&end=2024-01-01", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("Default Range Across DST", func(t *testing.T) {
		loc, err := time.LoadLocation("Europe/Zagreb")
		require.NoError(t, err)
		dst := newTestServer(&storagemock.MockDatabase{})
		dst.now = func() time.Time { return time.Date(2024, 3, 30, 5, 30, 0, 0, loc) }

		w := serve(dst, http.MethodGet, "/forecasts/1", "")
		require.Equal(t, http.StatusOK, w.Code)

		var points []map[string]any
		decodeBody(t, w, &points)
		assert.Equal(t, map[string]int{"Model A": 96, "Model B": 96, "Production": 6}, countBy(points, "source"))
	})

	t.Run("Invalid Plant", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/forecasts/abc", "")
		assertJSONError(t, w, http.StatusBadRequest, "invalid plant id")
	})

	t.Run("Invalid Start", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/forecasts/1?start=soon&end=2024-01-02", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid start time")
	})
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(&storagemock.MockDatabase{})

	t.Run("Default", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/metrics/3", "")
		require.Equal(t, http.StatusOK, w.Code)

		var points []map[string]any
		decodeBody(t, w, &points)
		require.Len(t, points, 6)
		for _, p := range points {
			assert.Equal(t, "Model", p["model"])
			assert.Equal(t, "accuracy", p["metric"])
			assert.Equal(t, "%", p["measurement_unit"])
			assert.NotContains(t, p, "type")
			v := p["value"].(float64)
			assert.GreaterOrEqual(t, v, 97.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	})

	t.Run("Other Models", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/metrics/3?metric=precision&other_models=2&other_models=&other_models=7", "")
		require.Equal(t, http.StatusOK, w.Code)

		var points []map[string]any
		decodeBody(t, w, &points)
		assert.Equal(t, map[string]int{"Model": 6, "Model2": 6, "Model7": 6}, countBy(points, "model"))
		assert.Equal(t, map[string]int{"precision": 18}, countBy(points, "metric"))
		assert.Equal(t, "Model", points[0]["model"])
		assert.Equal(t, "Model7", points[17]["model"])
	})

	t.Run("Future Range Is Empty", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/metrics/3?start=2024-02-01&end=2024-02-02", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("Invalid End", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/metrics/3?start=2024-02-01&end=later", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid end time")
	})

	t.Run("Invalid Model", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/metrics/lstm", "")
		assertJSONError(t, w, http.StatusBadRequest, "invalid model id")
	})

	t.Run("Available Is Not A Model", func(t *testing.T) {
		w := serve(srv, http.MethodGet, "/metrics/available", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"f1_score"`)
	})
}
