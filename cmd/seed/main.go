package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarforecast/solarforecast/pkg/log"
	"github.com/solarforecast/solarforecast/pkg/storage"
	"github.com/solarforecast/solarforecast/pkg/types"
)

var plants = []types.Plant{
	{
		PlantName:            "SE Vis",
		Latitude:             "43.03823574273269",
		Longitude:            "16.150850402782556",
		CapacityMW:           1.44,
		NumPanels:            3600,
		PanelHeight:          1.7,
		PanelWidth:           1.0,
		TotalPanelSurface:    6120,
		PanelEfficiency:      0.2,
		SystemEfficiency:     0.85,
		MaxInstalledCapacity: 1.5,
		Status:               true,
		CurrentProduction:    0.82,
		Utilization:          57,
	},
	{
		PlantName:            "SE Drava",
		Latitude:             "45.52121150403985",
		Longitude:            "18.664564092580623",
		CapacityMW:           0.98,
		NumPanels:            2450,
		PanelHeight:          1.7,
		PanelWidth:           1.0,
		TotalPanelSurface:    4165,
		PanelEfficiency:      0.19,
		SystemEfficiency:     0.84,
		MaxInstalledCapacity: 1.0,
		Status:               true,
		CurrentProduction:    0.58,
		Utilization:          59,
	},
	{
		PlantName:            "SE Kaštelir",
		Latitude:             "45.328141",
		Longitude:            "13.675503",
		CapacityMW:           1,
		NumPanels:            2500,
		PanelHeight:          1.7,
		PanelWidth:           1.0,
		TotalPanelSurface:    4250,
		PanelEfficiency:      0.2,
		SystemEfficiency:     0.86,
		MaxInstalledCapacity: 1.1,
		Status:               false,
		CurrentProduction:    0.49,
		Utilization:          49,
	},
}

var modelKinds = []struct {
	name        string
	kind        string
	description string
}{
	{"LSTM", "neural", "Long short-term memory network trained on hourly production"},
	{"XGBoost", "tree", "Gradient boosted trees over weather features"},
	{"ARIMA", "statistical", "Seasonal autoregressive baseline"},
}

var users = []types.User{
	{FullName: "Ana Horvat", Email: "ana@example.com", Username: "ana", Role: "admin", Active: true},
	{FullName: "Ivan Kovač", Email: "ivan@example.com", Username: "ivan", Role: "editor", Active: true},
	{FullName: "Marija Babić", Email: "marija@example.com", Username: "marija", Role: "viewer", Active: true},
	{FullName: "Luka Novak", Email: "luka@example.com", Username: "luka", Role: "viewer", Active: false},
}

func main() {
	s := storage.Configured()
	lflag.Configure()
	defer s.Close()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if err := seed(ctx, s, rng, time.Now()); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed mock data", "error", err)
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}

// seed fills db with the demo plants, their models, users and a history of
// model runs. Plants are matched by name and models, users by their keys, so
// running it again only adds what is missing.
func seed(ctx context.Context, db storage.Database, rng *rand.Rand, now time.Time) error {
	existing, err := db.ListPlants(ctx)
	if err != nil {
		return fmt.Errorf("failed to list plants: %w", err)
	}
	byName := make(map[string]types.Plant, len(existing))
	for _, p := range existing {
		byName[p.PlantName] = p
	}

	var modelIDs []string
	for _, p := range plants {
		created, ok := byName[p.PlantName]
		if !ok {
			created, err = db.CreatePlant(ctx, p)
			if err != nil {
				return fmt.Errorf("failed to seed plant %s: %w", p.PlantName, err)
			}
		}

		for i, k := range modelKinds {
			m := types.Model{
				ModelID:     fmt.Sprintf("%d-%d", created.PlantID, i+1),
				ModelName:   k.name,
				Description: k.description,
				PlantID:     created.PlantID,
				Accuracy:    80 + rng.Intn(16),
				Status:      "active",
				Type:        k.kind,
				Best:        i == 0,
			}
			if err := db.CreateModel(ctx, m); err != nil {
				if errors.Is(err, storage.ErrAlreadyExists) {
					continue
				}
				return fmt.Errorf("failed to seed model %s: %w", m.ModelID, err)
			}
			modelIDs = append(modelIDs, m.ModelID)
		}
		log.Ctx(ctx).InfoContext(ctx, "seeded plant", "plant_id", created.PlantID, "plant_name", created.PlantName)
	}

	for i, u := range users {
		u.AvatarURL = fmt.Sprintf("https://i.pravatar.cc/300?img=%d", i+1)
		u.CreatedAt = now.AddDate(0, 0, -30*(len(users)-i))
		if _, err := db.CreateUser(ctx, u); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("failed to seed user %s: %w", u.Username, err)
		}
	}

	// a run every six hours over the last two days, only for new models
	start := now.Add(-48 * time.Hour).Truncate(time.Hour)
	for _, id := range modelIDs {
		for t := start; t.Before(now); t = t.Add(6 * time.Hour) {
			e := types.Event{
				ModelID:     id,
				Status:      "success",
				Datetime:    t,
				Description: "Scheduled run",
			}
			if rng.Float64() < 0.1 {
				e.Status = "error"
				e.Description = "Weather data unavailable"
			}
			if _, err := db.CreateEvent(ctx, e); err != nil {
				return fmt.Errorf("failed to seed event for model %s: %w", id, err)
			}
		}
	}
	return nil
}
