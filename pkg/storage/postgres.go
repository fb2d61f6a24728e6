package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/levenlabs/go-lflag"
	"github.com/solarforecast/solarforecast/pkg/log"
	"github.com/solarforecast/solarforecast/pkg/types"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// pgPool is the subset of *pgxpool.Pool the provider uses. pgxmock pools
// satisfy it in tests.
type pgPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresProvider implements Database on top of PostgreSQL.
type PostgresProvider struct {
	dsn     string
	migrate bool
	pool    pgPool
}

// configuredPostgres sets up the postgres provider.
// It registers flags for configuration.
func configuredPostgres() *PostgresProvider {
	dsn := lflag.String("postgres-dsn", "postgres://postgres@localhost:5433/solar", "PostgreSQL connection string")
	migrate := lflag.Bool("postgres-migrate", true, "Create missing tables on startup")

	p := &PostgresProvider{}

	lflag.Do(func() {
		p.dsn = *dsn
		p.migrate = *migrate
	})

	return p
}

// Validate checks if the provider is properly configured.
func (p *PostgresProvider) Validate() error {
	if p.dsn == "" {
		return errors.New("postgres-dsn is required")
	}
	return nil
}

// Init connects to the database and, if enabled, creates the schema.
func (p *PostgresProvider) Init(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, p.dsn)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	p.pool = pool
	if p.migrate {
		if err := p.Migrate(ctx); err != nil {
			return err
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "connected to postgres")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS power_plant (
		plant_id SERIAL PRIMARY KEY,
		plant_name VARCHAR(255),
		latitude VARCHAR(255),
		longitude VARCHAR(255),
		capacity_mw DOUBLE PRECISION,
		num_panels INTEGER,
		panel_height DOUBLE PRECISION,
		panel_width DOUBLE PRECISION,
		total_panel_surface DOUBLE PRECISION,
		panel_efficiency DOUBLE PRECISION,
		system_efficiency DOUBLE PRECISION,
		total_surface_and_efficiency DOUBLE PRECISION,
		power_dependence_on_temperature_related_to_25_celsius DOUBLE PRECISION,
		max_installed_capacity DOUBLE PRECISION,
		status BOOLEAN,
		models INTEGER,
		current_production DOUBLE PRECISION,
		utilization DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS models (
		model_id VARCHAR(120) PRIMARY KEY,
		model_name VARCHAR(255),
		description TEXT,
		plant_id INTEGER REFERENCES power_plant(plant_id) ON DELETE SET NULL,
		accuracy INTEGER,
		status VARCHAR(255),
		type VARCHAR(255),
		best BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id SERIAL PRIMARY KEY,
		model_id VARCHAR(120) NOT NULL REFERENCES models(model_id) ON DELETE CASCADE,
		status VARCHAR(50) NOT NULL,
		datetime TIMESTAMPTZ NOT NULL,
		description VARCHAR(255)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		full_name VARCHAR(255),
		email VARCHAR(255) UNIQUE NOT NULL,
		username VARCHAR(100) UNIQUE NOT NULL,
		avatar_url VARCHAR(255),
		role VARCHAR(50),
		active BOOLEAN,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates any missing tables.
func (p *PostgresProvider) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (p *PostgresProvider) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

const plantColumns = `plant_id, COALESCE(plant_name, ''), COALESCE(latitude, ''), COALESCE(longitude, ''),
	COALESCE(capacity_mw, 0), COALESCE(num_panels, 0), COALESCE(panel_height, 0), COALESCE(panel_width, 0),
	COALESCE(total_panel_surface, 0), COALESCE(panel_efficiency, 0), COALESCE(system_efficiency, 0),
	COALESCE(total_surface_and_efficiency, 0), COALESCE(power_dependence_on_temperature_related_to_25_celsius, 0),
	COALESCE(max_installed_capacity, 0), COALESCE(status, false), COALESCE(models, 0),
	COALESCE(current_production, 0), COALESCE(utilization, 0)`

func scanPlant(row pgx.Row) (types.Plant, error) {
	var p types.Plant
	err := row.Scan(
		&p.PlantID,
		&p.PlantName,
		&p.Latitude,
		&p.Longitude,
		&p.CapacityMW,
		&p.NumPanels,
		&p.PanelHeight,
		&p.PanelWidth,
		&p.TotalPanelSurface,
		&p.PanelEfficiency,
		&p.SystemEfficiency,
		&p.TotalSurfaceAndEfficiency,
		&p.PowerDependenceOnTemperature,
		&p.MaxInstalledCapacity,
		&p.Status,
		&p.Models,
		&p.CurrentProduction,
		&p.Utilization,
	)
	return p, err
}

// ListPlants returns every plant ordered by ID.
func (p *PostgresProvider) ListPlants(ctx context.Context) ([]types.Plant, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+plantColumns+` FROM power_plant ORDER BY plant_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plants: %w", err)
	}
	defer rows.Close()

	var plants []types.Plant
	for rows.Next() {
		plant, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plant: %w", err)
		}
		plants = append(plants, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plants: %w", err)
	}
	return plants, nil
}

// GetPlant returns a single plant.
func (p *PostgresProvider) GetPlant(ctx context.Context, plantID int) (types.Plant, error) {
	plant, err := scanPlant(p.pool.QueryRow(ctx, `SELECT `+plantColumns+` FROM power_plant WHERE plant_id = $1`, plantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Plant{}, fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
		}
		return types.Plant{}, fmt.Errorf("failed to get plant %d: %w", plantID, err)
	}
	return plant, nil
}

// CreatePlant inserts a plant and returns it with the ID assigned by the
// database.
func (p *PostgresProvider) CreatePlant(ctx context.Context, plant types.Plant) (types.Plant, error) {
	created, err := scanPlant(p.pool.QueryRow(ctx, `
		INSERT INTO power_plant (plant_name, latitude, longitude, capacity_mw, num_panels, panel_height,
			panel_width, total_panel_surface, panel_efficiency, system_efficiency, total_surface_and_efficiency,
			power_dependence_on_temperature_related_to_25_celsius, max_installed_capacity, status, models,
			current_production, utilization)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+plantColumns,
		plant.PlantName,
		plant.Latitude,
		plant.Longitude,
		plant.CapacityMW,
		plant.NumPanels,
		plant.PanelHeight,
		plant.PanelWidth,
		plant.TotalPanelSurface,
		plant.PanelEfficiency,
		plant.SystemEfficiency,
		plant.TotalSurfaceAndEfficiency,
		plant.PowerDependenceOnTemperature,
		plant.MaxInstalledCapacity,
		plant.Status,
		plant.Models,
		plant.CurrentProduction,
		plant.Utilization,
	))
	if err != nil {
		return types.Plant{}, fmt.Errorf("failed to create plant: %w", err)
	}
	return created, nil
}

// UpdatePlant applies the non-nil fields of the patch in a single statement.
func (p *PostgresProvider) UpdatePlant(ctx context.Context, plantID int, patch types.PlantPatch) (types.Plant, error) {
	plant, err := scanPlant(p.pool.QueryRow(ctx, `
		UPDATE power_plant SET
			plant_name = COALESCE($2, plant_name),
			latitude = COALESCE($3, latitude),
			longitude = COALESCE($4, longitude),
			capacity_mw = COALESCE($5, capacity_mw),
			num_panels = COALESCE($6, num_panels),
			panel_height = COALESCE($7, panel_height),
			panel_width = COALESCE($8, panel_width),
			total_panel_surface = COALESCE($9, total_panel_surface),
			panel_efficiency = COALESCE($10, panel_efficiency),
			system_efficiency = COALESCE($11, system_efficiency),
			total_surface_and_efficiency = COALESCE($12, total_surface_and_efficiency),
			power_dependence_on_temperature_related_to_25_celsius = COALESCE($13, power_dependence_on_temperature_related_to_25_celsius),
			max_installed_capacity = COALESCE($14, max_installed_capacity)
		WHERE plant_id = $1
		RETURNING `+plantColumns,
		plantID,
		patch.PlantName,
		patch.Latitude,
		patch.Longitude,
		patch.CapacityMW,
		patch.NumPanels,
		patch.PanelHeight,
		patch.PanelWidth,
		patch.TotalPanelSurface,
		patch.PanelEfficiency,
		patch.SystemEfficiency,
		patch.TotalSurfaceAndEfficiency,
		patch.PowerDependenceOnTemperature,
		patch.MaxInstalledCapacity,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Plant{}, fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
		}
		return types.Plant{}, fmt.Errorf("failed to update plant %d: %w", plantID, err)
	}
	return plant, nil
}

// DeletePlant removes a plant.
func (p *PostgresProvider) DeletePlant(ctx context.Context, plantID int) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM power_plant WHERE plant_id = $1`, plantID)
	if err != nil {
		return fmt.Errorf("failed to delete plant %d: %w", plantID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
	}
	return nil
}

const modelColumns = `model_id, COALESCE(model_name, ''), COALESCE(description, ''), COALESCE(plant_id, 0),
	COALESCE(accuracy, 0), COALESCE(status, ''), COALESCE(type, ''), COALESCE(best, false)`

func scanModel(row pgx.Row) (types.Model, error) {
	var m types.Model
	err := row.Scan(
		&m.ModelID,
		&m.ModelName,
		&m.Description,
		&m.PlantID,
		&m.Accuracy,
		&m.Status,
		&m.Type,
		&m.Best,
	)
	return m, err
}

// ListModels returns the models matching the filter ordered by ID.
func (p *PostgresProvider) ListModels(ctx context.Context, filter types.ModelFilter) ([]types.Model, error) {
	query := `SELECT ` + modelColumns + ` FROM models`
	var args []any
	if filter.PlantID != nil {
		query += ` WHERE plant_id = $1`
		args = append(args, *filter.PlantID)
	}
	query += ` ORDER BY model_id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var models []types.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}
	return models, nil
}

// GetModel returns a single model.
func (p *PostgresProvider) GetModel(ctx context.Context, modelID string) (types.Model, error) {
	m, err := scanModel(p.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE model_id = $1`, modelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Model{}, fmt.Errorf("%w: model %s", ErrNotFound, modelID)
		}
		return types.Model{}, fmt.Errorf("failed to get model %s: %w", modelID, err)
	}
	return m, nil
}

// CreateModel inserts a model. The caller provides the model ID.
func (p *PostgresProvider) CreateModel(ctx context.Context, model types.Model) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO models (model_id, model_name, description, plant_id, accuracy, status, type, best)
		VALUES ($1, $2, $3, NULLIF($4, 0), $5, $6, $7, $8)`,
		model.ModelID,
		model.ModelName,
		model.Description,
		model.PlantID,
		model.Accuracy,
		model.Status,
		model.Type,
		model.Best,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: model %s", ErrAlreadyExists, model.ModelID)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: plant %d", ErrInvalidReference, model.PlantID)
		}
		return fmt.Errorf("failed to create model %s: %w", model.ModelID, err)
	}
	return nil
}

// UpdateModel applies the non-nil fields of the patch. A plant ID of 0
// detaches the model from its plant.
func (p *PostgresProvider) UpdateModel(ctx context.Context, modelID string, patch types.ModelPatch) (types.Model, error) {
	m, err := scanModel(p.pool.QueryRow(ctx, `
		UPDATE models SET
			model_name = COALESCE($2, model_name),
			description = COALESCE($3, description),
			plant_id = NULLIF(COALESCE($4, plant_id), 0)
		WHERE model_id = $1
		RETURNING `+modelColumns,
		modelID,
		patch.ModelName,
		patch.Description,
		patch.PlantID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Model{}, fmt.Errorf("%w: model %s", ErrNotFound, modelID)
		}
		if isForeignKeyViolation(err) {
			return types.Model{}, fmt.Errorf("%w: plant %d", ErrInvalidReference, *patch.PlantID)
		}
		return types.Model{}, fmt.Errorf("failed to update model %s: %w", modelID, err)
	}
	return m, nil
}

// DeleteModel removes a model.
func (p *PostgresProvider) DeleteModel(ctx context.Context, modelID string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM models WHERE model_id = $1`, modelID)
	if err != nil {
		return fmt.Errorf("failed to delete model %s: %w", modelID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: model %s", ErrNotFound, modelID)
	}
	return nil
}

const userColumns = `id, COALESCE(full_name, ''), email, username, COALESCE(avatar_url, ''),
	COALESCE(role, ''), COALESCE(active, false), created_at`

func scanUser(row pgx.Row) (types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.Email,
		&u.Username,
		&u.AvatarURL,
		&u.Role,
		&u.Active,
		&u.CreatedAt,
	)
	return u, err
}

// ListUsers returns the users matching the filter ordered by ID.
func (p *PostgresProvider) ListUsers(ctx context.Context, filter types.UserFilter) ([]types.User, error) {
	var conds []string
	var args []any
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(full_name ILIKE $%d OR email ILIKE $%d OR username ILIKE $%d)", n, n, n))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetUser returns a single user.
func (p *PostgresProvider) GetUser(ctx context.Context, userID int) (types.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.User{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return types.User{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return u, nil
}

// CreateUser inserts a user. Email and username must be unique.
func (p *PostgresProvider) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO users (full_name, email, username, avatar_url, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		user.FullName,
		user.Email,
		user.Username,
		user.AvatarURL,
		user.Role,
		user.Active,
		user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, fmt.Errorf("%w: user %s", ErrAlreadyExists, user.Username)
		}
		return types.User{}, fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return user, nil
}

// ListEvents returns the events matching the filter in chronological order.
func (p *PostgresProvider) ListEvents(ctx context.Context, filter types.EventFilter) ([]types.Event, error) {
	query := `SELECT id, model_id, status, datetime, COALESCE(description, '') FROM events`
	var args []any
	if filter.ModelID != "" {
		query += ` WHERE model_id = $1`
		args = append(args, filter.ModelID)
	}
	query += ` ORDER BY datetime, id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var e types.Event
		if err := rows.Scan(&e.ID, &e.ModelID, &e.Status, &e.Datetime, &e.Description); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// CreateEvent inserts an event and returns it with its assigned ID.
func (p *PostgresProvider) CreateEvent(ctx context.Context, event types.Event) (types.Event, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO events (model_id, status, datetime, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		event.ModelID,
		event.Status,
		event.Datetime,
		event.Description,
	).Scan(&event.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.Event{}, fmt.Errorf("%w: model %s", ErrInvalidReference, event.ModelID)
		}
		log.Ctx(ctx).WarnContext(ctx, "failed to insert event", slog.String("modelID", event.ModelID), slog.Any("error", err))
		return types.Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}
