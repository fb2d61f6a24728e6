package types

import "time"

// User is a dashboard user.
type User struct {
	ID        int       `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFilter narrows a user listing. Search matches the full name, email or
// username case-insensitively; Role must match exactly.
type UserFilter struct {
	Search string
	Role   string
}

// Event is a status change reported for a model run.
type Event struct {
	ID          int       `json:"id"`
	ModelID     string    `json:"model_id"`
	Status      string    `json:"status"`
	Datetime    time.Time `json:"datetime"`
	Description string    `json:"description"`
}

// EventFilter narrows an event listing. An empty ModelID lists every event.
type EventFilter struct {
	ModelID string
}

// Option is a label/value pair offered to select inputs.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var (
	Roles = []Option{
		{Label: "Admin", Value: "admin"},
		{Label: "Editor", Value: "editor"},
		{Label: "Viewer", Value: "viewer"},
	}

	WeatherParams = []Option{
		{Label: "Temperature", Value: "temperature"},
		{Label: "Humidity", Value: "humidity"},
		{Label: "Wind Speed", Value: "wind-speed"},
		{Label: "Cloud Cover", Value: "cloud-cover"},
		{Label: "Precipitation", Value: "precipitation"},
		{Label: "Air Pressure", Value: "air-pressure"},
		{Label: "UV Index", Value: "uv-index"},
	}

	AvailableMetrics = []Option{
		{Label: "Accuracy", Value: "accuracy"},
		{Label: "Precision", Value: "precision"},
		{Label: "Recall", Value: "recall"},
		{Label: "F1 Score", Value: "f1_score"},
	}
)
