package types

// Plant is a solar power plant.
type Plant struct {
	PlantID                      int     `json:"plant_id"`
	PlantName                    string  `json:"plant_name"`
	Latitude                     string  `json:"latitude"`
	Longitude                    string  `json:"longitude"`
	CapacityMW                   float64 `json:"capacity_mw"`
	NumPanels                    int     `json:"num_panels"`
	PanelHeight                  float64 `json:"panel_height"`
	PanelWidth                   float64 `json:"panel_width"`
	TotalPanelSurface            float64 `json:"total_panel_surface"`
	PanelEfficiency              float64 `json:"panel_efficiency"`
	SystemEfficiency             float64 `json:"system_efficiency"`
	TotalSurfaceAndEfficiency    float64 `json:"total_surface_and_efficiency"`
	PowerDependenceOnTemperature float64 `json:"power_dependence_on_temperature_related_to_25_celsius"`
	MaxInstalledCapacity         float64 `json:"max_installed_capacity"`
	Status                       bool    `json:"status"`
	Models                       int     `json:"models"`
	CurrentProduction            float64 `json:"current_production"`
	Utilization                  float64 `json:"utilization"`
}

// PlantDetail is a plant along with its user-defined parameters.
type PlantDetail struct {
	Plant
	CustomParameters []CustomParameter `json:"custom_parameters"`
}

// PlantPatch holds the plant fields a partial update may change. Nil fields are
// left untouched.
type PlantPatch struct {
	PlantName                    *string  `json:"plant_name"`
	Latitude                     *string  `json:"latitude"`
	Longitude                    *string  `json:"longitude"`
	CapacityMW                   *float64 `json:"capacity_mw"`
	NumPanels                    *int     `json:"num_panels"`
	PanelHeight                  *float64 `json:"panel_height"`
	PanelWidth                   *float64 `json:"panel_width"`
	TotalPanelSurface            *float64 `json:"total_panel_surface"`
	PanelEfficiency              *float64 `json:"panel_efficiency"`
	SystemEfficiency             *float64 `json:"system_efficiency"`
	TotalSurfaceAndEfficiency    *float64 `json:"total_surface_and_efficiency"`
	PowerDependenceOnTemperature *float64 `json:"power_dependence_on_temperature_related_to_25_celsius"`
	MaxInstalledCapacity         *float64 `json:"max_installed_capacity"`
}

// PatchFromPlant returns a patch that overwrites every editable field with the
// values from p.
func PatchFromPlant(p Plant) PlantPatch {
	return PlantPatch{
		PlantName:                    &p.PlantName,
		Latitude:                     &p.Latitude,
		Longitude:                    &p.Longitude,
		CapacityMW:                   &p.CapacityMW,
		NumPanels:                    &p.NumPanels,
		PanelHeight:                  &p.PanelHeight,
		PanelWidth:                   &p.PanelWidth,
		TotalPanelSurface:            &p.TotalPanelSurface,
		PanelEfficiency:              &p.PanelEfficiency,
		SystemEfficiency:             &p.SystemEfficiency,
		TotalSurfaceAndEfficiency:    &p.TotalSurfaceAndEfficiency,
		PowerDependenceOnTemperature: &p.PowerDependenceOnTemperature,
		MaxInstalledCapacity:         &p.MaxInstalledCapacity,
	}
}

// Apply copies the set fields of the patch onto p.
func (pp PlantPatch) Apply(p *Plant) {
	if pp.PlantName != nil {
		p.PlantName = *pp.PlantName
	}
	if pp.Latitude != nil {
		p.Latitude = *pp.Latitude
	}
	if pp.Longitude != nil {
		p.Longitude = *pp.Longitude
	}
	if pp.CapacityMW != nil {
		p.CapacityMW = *pp.CapacityMW
	}
	if pp.NumPanels != nil {
		p.NumPanels = *pp.NumPanels
	}
	if pp.PanelHeight != nil {
		p.PanelHeight = *pp.PanelHeight
	}
	if pp.PanelWidth != nil {
		p.PanelWidth = *pp.PanelWidth
	}
	if pp.TotalPanelSurface != nil {
		p.TotalPanelSurface = *pp.TotalPanelSurface
	}
	if pp.PanelEfficiency != nil {
		p.PanelEfficiency = *pp.PanelEfficiency
	}
	if pp.SystemEfficiency != nil {
		p.SystemEfficiency = *pp.SystemEfficiency
	}
	if pp.TotalSurfaceAndEfficiency != nil {
		p.TotalSurfaceAndEfficiency = *pp.TotalSurfaceAndEfficiency
	}
	if pp.PowerDependenceOnTemperature != nil {
		p.PowerDependenceOnTemperature = *pp.PowerDependenceOnTemperature
	}
	if pp.MaxInstalledCapacity != nil {
		p.MaxInstalledCapacity = *pp.MaxInstalledCapacity
	}
}

// CustomParameter is a free-form, user-defined parameter on a plant or model.
type CustomParameter struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}
