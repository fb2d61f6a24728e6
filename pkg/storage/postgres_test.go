package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/solarforecast/solarforecast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var plantColumnNames = []string{
	"plant_id", "plant_name", "latitude", "longitude", "capacity_mw", "num_panels", "panel_height",
	"panel_width", "total_panel_surface", "panel_efficiency", "system_efficiency",
	"total_surface_and_efficiency", "power_dependence_on_temperature_related_to_25_celsius",
	"max_installed_capacity", "status", "models", "current_production", "utilization",
}

var modelColumnNames = []string{"model_id", "model_name", "description", "plant_id", "accuracy", "status", "type", "best"}

var userColumnNames = []string{"id", "full_name", "email", "username", "avatar_url", "role", "active", "created_at"}

func newMockProvider(t *testing.T) (*PostgresProvider, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return &PostgresProvider{dsn: "postgres://test", pool: mockPool}, mockPool
}

func plantRows(plants ...types.Plant) *pgxmock.Rows {
	rows := pgxmock.NewRows(plantColumnNames)
	for _, p := range plants {
		rows.AddRow(
			p.PlantID, p.PlantName, p.Latitude, p.Longitude, p.CapacityMW, p.NumPanels, p.PanelHeight,
			p.PanelWidth, p.TotalPanelSurface, p.PanelEfficiency, p.SystemEfficiency,
			p.TotalSurfaceAndEfficiency, p.PowerDependenceOnTemperature, p.MaxInstalledCapacity,
			p.Status, p.Models, p.CurrentProduction, p.Utilization,
		)
	}
	return rows
}

func TestPostgresValidate(t *testing.T) {
	assert.Error(t, (&PostgresProvider{}).Validate())
	assert.NoError(t, (&PostgresProvider{dsn: "postgres://localhost/solar"}).Validate())
}

func TestPostgresMigrate(t *testing.T) {
	p, mockPool := newMockProvider(t)
	for range schema {
		mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS")).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	}
	require.NoError(t, p.Migrate(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresPlants(t *testing.T) {
	ctx := context.Background()
	vis := types.Plant{PlantID: 1, PlantName: "SE Vis", Latitude: "43.03", Longitude: "16.15", CapacityMW: 1.44, NumPanels: 3200, Status: true}
	drava := types.Plant{PlantID: 2, PlantName: "SE Drava", CapacityMW: 0.98}

	t.Run("List", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM power_plant ORDER BY plant_id")).
			WillReturnRows(plantRows(vis, drava))

		plants, err := p.ListPlants(ctx)
		require.NoError(t, err)
		require.Len(t, plants, 2)
		assert.Equal(t, vis, plants[0])
		assert.Equal(t, "SE Drava", plants[1].PlantName)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Get", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM power_plant WHERE plant_id = $1")).
			WithArgs(1).
			WillReturnRows(plantRows(vis))

		plant, err := p.GetPlant(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, vis, plant)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Get Not Found", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM power_plant WHERE plant_id = $1")).
			WithArgs(99).
			WillReturnError(pgx.ErrNoRows)

		_, err := p.GetPlant(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Create", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		in := vis
		in.PlantID = 0
		mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO power_plant")).
			WithArgs("SE Vis", "43.03", "16.15", 1.44, 3200, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, true, 0, 0.0, 0.0).
			WillReturnRows(plantRows(vis))

		created, err := p.CreatePlant(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 1, created.PlantID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Update", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		updated := vis
		updated.PlantName = "SE Vis North"
		args := []any{1}
		for i := 0; i < 13; i++ {
			args = append(args, pgxmock.AnyArg())
		}
		mockPool.ExpectQuery(regexp.QuoteMeta("UPDATE power_plant SET")).
			WithArgs(args...).
			WillReturnRows(plantRows(updated))

		name := "SE Vis North"
		plant, err := p.UpdatePlant(ctx, 1, types.PlantPatch{PlantName: &name})
		require.NoError(t, err)
		assert.Equal(t, "SE Vis North", plant.PlantName)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Update Not Found", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("UPDATE power_plant SET")).
			WillReturnError(pgx.ErrNoRows)

		_, err := p.UpdatePlant(ctx, 5, types.PlantPatch{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectExec(regexp.QuoteMeta("DELETE FROM power_plant WHERE plant_id = $1")).
			WithArgs(1).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mockPool.ExpectExec(regexp.QuoteMeta("DELETE FROM power_plant WHERE plant_id = $1")).
			WithArgs(1).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, p.DeletePlant(ctx, 1))
		assert.ErrorIs(t, p.DeletePlant(ctx, 1), ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresModels(t *testing.T) {
	ctx := context.Background()

	t.Run("List By Plant", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM models WHERE plant_id = $1 ORDER BY model_id")).
			WithArgs(1).
			WillReturnRows(pgxmock.NewRows(modelColumnNames).
				AddRow("lstm-1", "LSTM", "hourly", 1, 91, "active", "lstm", true).
				AddRow("xgb-1", "XGBoost", "", 1, 87, "idle", "xgboost", false))

		plantID := 1
		models, err := p.ListModels(ctx, types.ModelFilter{PlantID: &plantID})
		require.NoError(t, err)
		require.Len(t, models, 2)
		assert.Equal(t, types.Model{ModelID: "lstm-1", ModelName: "LSTM", Description: "hourly", PlantID: 1, Accuracy: 91, Status: "active", Type: "lstm", Best: true}, models[0])
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("List All", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM models ORDER BY model_id")).
			WillReturnRows(pgxmock.NewRows(modelColumnNames))

		models, err := p.ListModels(ctx, types.ModelFilter{})
		require.NoError(t, err)
		assert.Empty(t, models)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Create Duplicate", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO models")).
			WithArgs("lstm-1", "LSTM", "", 1, 0, "", "", false).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		err := p.CreateModel(ctx, types.Model{ModelID: "lstm-1", ModelName: "LSTM", PlantID: 1})
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Create Unknown Plant", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO models")).
			WithArgs("lstm-1", "LSTM", "", 9, 0, "", "", false).
			WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

		err := p.CreateModel(ctx, types.Model{ModelID: "lstm-1", ModelName: "LSTM", PlantID: 9})
		assert.ErrorIs(t, err, ErrInvalidReference)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Update", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		desc := "daily"
		mockPool.ExpectQuery(regexp.QuoteMeta("UPDATE models SET")).
			WithArgs("lstm-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(modelColumnNames).
				AddRow("lstm-1", "LSTM", "daily", 1, 91, "active", "lstm", true))

		m, err := p.UpdateModel(ctx, "lstm-1", types.ModelPatch{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, "daily", m.Description)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Update Zero Plant Detaches", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		zero := 0
		mockPool.ExpectQuery(regexp.QuoteMeta("plant_id = NULLIF(COALESCE($4, plant_id), 0)")).
			WithArgs("lstm-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(modelColumnNames).
				AddRow("lstm-1", "LSTM", "", 0, 91, "active", "lstm", true))

		m, err := p.UpdateModel(ctx, "lstm-1", types.ModelPatch{PlantID: &zero})
		require.NoError(t, err)
		assert.Equal(t, 0, m.PlantID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Delete Not Found", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectExec(regexp.QuoteMeta("DELETE FROM models WHERE model_id = $1")).
			WithArgs("nope").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, p.DeleteModel(ctx, "nope"), ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresUsers(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	t.Run("List With Filter", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("WHERE (full_name ILIKE $1 OR email ILIKE $1 OR username ILIKE $1) AND role = $2 ORDER BY id")).
			WithArgs("%ana%", "admin").
			WillReturnRows(pgxmock.NewRows(userColumnNames).
				AddRow(1, "Ana Kovač", "ana@example.com", "ana", "", "admin", true, created))

		users, err := p.ListUsers(ctx, types.UserFilter{Search: "ana", Role: "admin"})
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "Ana Kovač", users[0].FullName)
		assert.True(t, users[0].CreatedAt.Equal(created))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("List Role Only", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 ORDER BY id")).
			WithArgs("viewer").
			WillReturnRows(pgxmock.NewRows(userColumnNames))

		users, err := p.ListUsers(ctx, types.UserFilter{Role: "viewer"})
		require.NoError(t, err)
		assert.Empty(t, users)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Get Not Found", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs(7).
			WillReturnError(pgx.ErrNoRows)

		_, err := p.GetUser(ctx, 7)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Create", func(t *testing.T) {
		p, mockPool := newMockProvider(t)
		mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs("Ivo Ivić", "ivo@example.com", "ivo", "", "viewer", true, created).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(3))

		u, err := p.CreateUser(ctx, types.User{FullName: "Ivo Ivić", Email: "ivo@example.com", Username: "ivo", Role: "viewer", Active: true, CreatedAt: created})
		require.NoError(t, err)
		assert.Equal(t, 3, u.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresEvents(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	p, mockPool := newMockProvider(t)
	mockPool.ExpectQuery(regexp.QuoteMeta("INSERT INTO events")).
		WithArgs("lstm-1", "success", at, "run finished").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(10))
	mockPool.ExpectQuery(regexp.QuoteMeta("FROM events WHERE model_id = $1 ORDER BY datetime, id")).
		WithArgs("lstm-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "model_id", "status", "datetime", "description"}).
			AddRow(10, "lstm-1", "success", at, "run finished"))

	e, err := p.CreateEvent(ctx, types.Event{ModelID: "lstm-1", Status: "success", Datetime: at, Description: "run finished"})
	require.NoError(t, err)
	assert.Equal(t, 10, e.ID)

	events, err := p.ListEvents(ctx, types.EventFilter{ModelID: "lstm-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e, events[0])
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
