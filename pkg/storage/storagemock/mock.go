package storagemock

import (
	"context"

	"github.com/solarforecast/solarforecast/pkg/storage"
	"github.com/solarforecast/solarforecast/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) ListPlants(ctx context.Context) ([]types.Plant, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		plants, _ := args.Get(0).([]types.Plant)
		return plants, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetPlant(ctx context.Context, plantID int) (types.Plant, error) {
	args := m.Called(ctx, plantID)
	if len(args) > 0 {
		return args.Get(0).(types.Plant), args.Error(1)
	}
	return types.Plant{}, nil
}

func (m *MockDatabase) CreatePlant(ctx context.Context, plant types.Plant) (types.Plant, error) {
	args := m.Called(ctx, plant)
	if len(args) > 0 {
		return args.Get(0).(types.Plant), args.Error(1)
	}
	return plant, nil
}

func (m *MockDatabase) UpdatePlant(ctx context.Context, plantID int, patch types.PlantPatch) (types.Plant, error) {
	args := m.Called(ctx, plantID, patch)
	if len(args) > 0 {
		return args.Get(0).(types.Plant), args.Error(1)
	}
	return types.Plant{}, nil
}

func (m *MockDatabase) DeletePlant(ctx context.Context, plantID int) error {
	args := m.Called(ctx, plantID)
	return args.Error(0)
}

func (m *MockDatabase) ListModels(ctx context.Context, filter types.ModelFilter) ([]types.Model, error) {
	args := m.Called(ctx, filter)
	if len(args) > 0 {
		models, _ := args.Get(0).([]types.Model)
		return models, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetModel(ctx context.Context, modelID string) (types.Model, error) {
	args := m.Called(ctx, modelID)
	if len(args) > 0 {
		return args.Get(0).(types.Model), args.Error(1)
	}
	return types.Model{}, nil
}

func (m *MockDatabase) CreateModel(ctx context.Context, model types.Model) error {
	args := m.Called(ctx, model)
	return args.Error(0)
}

func (m *MockDatabase) UpdateModel(ctx context.Context, modelID string, patch types.ModelPatch) (types.Model, error) {
	args := m.Called(ctx, modelID, patch)
	if len(args) > 0 {
		return args.Get(0).(types.Model), args.Error(1)
	}
	return types.Model{}, nil
}

func (m *MockDatabase) DeleteModel(ctx context.Context, modelID string) error {
	args := m.Called(ctx, modelID)
	return args.Error(0)
}

func (m *MockDatabase) ListUsers(ctx context.Context, filter types.UserFilter) ([]types.User, error) {
	args := m.Called(ctx, filter)
	if len(args) > 0 {
		users, _ := args.Get(0).([]types.User)
		return users, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetUser(ctx context.Context, userID int) (types.User, error) {
	args := m.Called(ctx, userID)
	if len(args) > 0 {
		return args.Get(0).(types.User), args.Error(1)
	}
	return types.User{}, nil
}

func (m *MockDatabase) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	args := m.Called(ctx, user)
	if len(args) > 0 {
		return args.Get(0).(types.User), args.Error(1)
	}
	return user, nil
}

func (m *MockDatabase) ListEvents(ctx context.Context, filter types.EventFilter) ([]types.Event, error) {
	args := m.Called(ctx, filter)
	if len(args) > 0 {
		events, _ := args.Get(0).([]types.Event)
		return events, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) CreateEvent(ctx context.Context, event types.Event) (types.Event, error) {
	args := m.Called(ctx, event)
	if len(args) > 0 {
		return args.Get(0).(types.Event), args.Error(1)
	}
	return event, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
