package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/solarforecast/solarforecast/pkg/types"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidReference is returned when a record points at a missing record.
	ErrInvalidReference = errors.New("invalid reference")
)

// Database defines the interface for persisting plants, models, users and
// events.
type Database interface {
	// Plants
	ListPlants(ctx context.Context) ([]types.Plant, error)
	GetPlant(ctx context.Context, plantID int) (types.Plant, error)
	// CreatePlant stores a new plant and returns it with its assigned ID.
	CreatePlant(ctx context.Context, plant types.Plant) (types.Plant, error)
	UpdatePlant(ctx context.Context, plantID int, patch types.PlantPatch) (types.Plant, error)
	DeletePlant(ctx context.Context, plantID int) error

	// Models
	ListModels(ctx context.Context, filter types.ModelFilter) ([]types.Model, error)
	GetModel(ctx context.Context, modelID string) (types.Model, error)
	CreateModel(ctx context.Context, model types.Model) error
	UpdateModel(ctx context.Context, modelID string, patch types.ModelPatch) (types.Model, error)
	DeleteModel(ctx context.Context, modelID string) error

	// Users
	ListUsers(ctx context.Context, filter types.UserFilter) ([]types.User, error)
	GetUser(ctx context.Context, userID int) (types.User, error)
	CreateUser(ctx context.Context, user types.User) (types.User, error)

	// Events
	ListEvents(ctx context.Context, filter types.EventFilter) ([]types.Event, error)
	CreateEvent(ctx context.Context, event types.Event) (types.Event, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "postgres", "Storage provider to use (available: postgres, firestore)")

	var p struct{ Database }

	pg := configuredPostgres()
	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "postgres":
			if err := pg.Validate(); err != nil {
				panic(fmt.Sprintf("postgres validation failed: %v", err))
			}
			p.Database = pg
			if err := pg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("postgres init failed: %v", err))
			}
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// matchesUser reports whether u passes the filter. Providers that cannot search
// server-side filter with this.
func matchesUser(u types.User, filter types.UserFilter) bool {
	if filter.Role != "" && u.Role != filter.Role {
		return false
	}
	if filter.Search == "" {
		return true
	}
	search := strings.ToLower(filter.Search)
	return strings.Contains(strings.ToLower(u.FullName), search) ||
		strings.Contains(strings.ToLower(u.Email), search) ||
		strings.Contains(strings.ToLower(u.Username), search)
}
