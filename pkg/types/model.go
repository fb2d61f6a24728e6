package types

import "time"

// Model is a predictive model attached to a plant.
type Model struct {
	ModelID     string `json:"model_id"`
	ModelName   string `json:"model_name"`
	Description string `json:"description"`
	PlantID     int    `json:"plant_id"`
	Accuracy    int    `json:"accuracy"`
	Status      string `json:"status"`
	Type        string `json:"model_type"`
	Best        bool   `json:"best"`
}

// ModelPatch holds the model fields a partial update may change.
type ModelPatch struct {
	ModelName   *string `json:"model_name"`
	Description *string `json:"description"`
	PlantID     *int    `json:"plant_id"`
}

// Apply copies the set fields of the patch onto m.
func (mp ModelPatch) Apply(m *Model) {
	if mp.ModelName != nil {
		m.ModelName = *mp.ModelName
	}
	if mp.Description != nil {
		m.Description = *mp.Description
	}
	if mp.PlantID != nil {
		m.PlantID = *mp.PlantID
	}
}

// ModelFilter narrows a model listing. A nil PlantID lists every model.
type ModelFilter struct {
	PlantID *int
}

// ModelMetric is a summary quality metric of a model.
type ModelMetric struct {
	Name  string  `json:"name"`
	Abbr  string  `json:"abbr"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// ModelRunOptions controls when a model is run.
type ModelRunOptions struct {
	Enabled  bool     `json:"enabled"`
	Auto     bool     `json:"auto"`
	RunTimes []string `json:"run_times"`
}

// ModelDetail is the full view of a single model.
type ModelDetail struct {
	ModelID          string            `json:"model_id"`
	ModelName        string            `json:"model_name"`
	Description      string            `json:"description"`
	PlantID          int               `json:"plant_id"`
	PlantName        string            `json:"plant_name"`
	Accuracy         int               `json:"accuracy"`
	Best             bool              `json:"best"`
	Type             string            `json:"type"`
	Status           string            `json:"status"`
	Parameters       []string          `json:"parameters"`
	CustomParameters []CustomParameter `json:"custom_parameters"`
	Metrics          []ModelMetric     `json:"metrics"`
	Options          ModelRunOptions   `json:"options"`
	MetricsUpdated   time.Time         `json:"metrics_updated"`
	LastRun          time.Time         `json:"last_run"`
}
