package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/solarforecast/solarforecast/pkg/log"
	"github.com/solarforecast/solarforecast/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	plantsCollection   = "power_plants"
	modelsCollection   = "models"
	usersCollection    = "users"
	eventsCollection   = "events"
	countersCollection = "counters"
	userKeysCollection = "user_keys"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Every record is stored as a JSON blob in the "json" field with the
// fields needed for filtering copied alongside it.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID may be empty since it can be detected from the environment.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// decodeDoc unmarshals the "json" field of a document into v.
func decodeDoc(ctx context.Context, doc *firestore.DocumentSnapshot, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

func encodeDoc(v any, fields map[string]interface{}) (map[string]interface{}, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"json": string(jsonBytes),
	}
	for k, val := range fields {
		data[k] = val
	}
	return data, nil
}

// collect decodes every document from iter using decode.
func collect(iter *firestore.DocumentIterator, name string, decode func(doc *firestore.DocumentSnapshot) error) error {
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error iterating %s: %w", name, err)
		}
		if err := decode(doc); err != nil {
			return err
		}
	}
}

// nextID allocates the next integer ID for a collection using a counter
// document updated in a transaction.
func (f *FirestoreProvider) nextID(ctx context.Context, collection string) (int, error) {
	var id int
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var err error
		id, err = f.txNextID(tx, collection)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", collection, err)
	}
	return id, nil
}

// txNextID bumps the collection's counter inside tx. It reads before it
// writes, so callers must do their own reads first.
func (f *FirestoreProvider) txNextID(tx *firestore.Transaction, collection string) (int, error) {
	ref := f.client.Collection(countersCollection).Doc(collection)
	var last int64
	doc, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return 0, err
		}
	} else if v, err := doc.DataAt("last"); err == nil {
		if vInt, ok := v.(int64); ok {
			last = vInt
		}
	}
	id := int(last) + 1
	if err := tx.Set(ref, map[string]interface{}{"last": id}); err != nil {
		return 0, err
	}
	return id, nil
}

// txRequire returns ErrInvalidReference when the referenced document is
// missing.
func txRequire(tx *firestore.Transaction, ref *firestore.DocumentRef, what string) error {
	if _, err := tx.Get(ref); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s %s", ErrInvalidReference, what, ref.ID)
		}
		return err
	}
	return nil
}

// ListPlants returns every plant ordered by ID.
func (f *FirestoreProvider) ListPlants(ctx context.Context) ([]types.Plant, error) {
	var plants []types.Plant
	err := collect(f.client.Collection(plantsCollection).OrderBy("plant_id", firestore.Asc).Documents(ctx), "plants", func(doc *firestore.DocumentSnapshot) error {
		var p types.Plant
		if err := decodeDoc(ctx, doc, &p); err != nil {
			return err
		}
		plants = append(plants, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plants, nil
}

// GetPlant returns a single plant.
func (f *FirestoreProvider) GetPlant(ctx context.Context, plantID int) (types.Plant, error) {
	doc, err := f.client.Collection(plantsCollection).Doc(strconv.Itoa(plantID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Plant{}, fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
		}
		return types.Plant{}, fmt.Errorf("failed to get plant %d: %w", plantID, err)
	}
	var p types.Plant
	if err := decodeDoc(ctx, doc, &p); err != nil {
		return types.Plant{}, err
	}
	return p, nil
}

// CreatePlant stores a plant under a newly allocated ID.
func (f *FirestoreProvider) CreatePlant(ctx context.Context, plant types.Plant) (types.Plant, error) {
	id, err := f.nextID(ctx, plantsCollection)
	if err != nil {
		return types.Plant{}, err
	}
	plant.PlantID = id
	data, err := encodeDoc(plant, map[string]interface{}{"plant_id": id})
	if err != nil {
		return types.Plant{}, fmt.Errorf("failed to marshal plant: %w", err)
	}
	if _, err := f.client.Collection(plantsCollection).Doc(strconv.Itoa(id)).Create(ctx, data); err != nil {
		return types.Plant{}, fmt.Errorf("failed to create plant %d: %w", id, err)
	}
	return plant, nil
}

// UpdatePlant applies the patch inside a transaction.
func (f *FirestoreProvider) UpdatePlant(ctx context.Context, plantID int, patch types.PlantPatch) (types.Plant, error) {
	ref := f.client.Collection(plantsCollection).Doc(strconv.Itoa(plantID))
	var plant types.Plant
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
			}
			return err
		}
		plant = types.Plant{}
		if err := decodeDoc(ctx, doc, &plant); err != nil {
			return err
		}
		patch.Apply(&plant)
		data, err := encodeDoc(plant, map[string]interface{}{"plant_id": plantID})
		if err != nil {
			return err
		}
		return tx.Set(ref, data)
	})
	if err != nil {
		return types.Plant{}, fmt.Errorf("failed to update plant %d: %w", plantID, err)
	}
	return plant, nil
}

// DeletePlant removes a plant and detaches its models.
func (f *FirestoreProvider) DeletePlant(ctx context.Context, plantID int) error {
	ref := f.client.Collection(plantsCollection).Doc(strconv.Itoa(plantID))
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: plant %d", ErrNotFound, plantID)
			}
			return err
		}
		docs, err := tx.Documents(f.client.Collection(modelsCollection).Where("plant_id", "==", plantID)).GetAll()
		if err != nil {
			return err
		}
		for _, doc := range docs {
			var m types.Model
			if err := decodeDoc(ctx, doc, &m); err != nil {
				return err
			}
			m.PlantID = 0
			data, err := encodeDoc(m, map[string]interface{}{"plant_id": 0})
			if err != nil {
				return err
			}
			if err := tx.Set(doc.Ref, data); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return fmt.Errorf("failed to delete plant %d: %w", plantID, err)
	}
	return nil
}

// ListModels returns the models matching the filter ordered by ID.
func (f *FirestoreProvider) ListModels(ctx context.Context, filter types.ModelFilter) ([]types.Model, error) {
	q := f.client.Collection(modelsCollection).Query
	if filter.PlantID != nil {
		q = q.Where("plant_id", "==", *filter.PlantID)
	}
	var models []types.Model
	err := collect(q.Documents(ctx), "models", func(doc *firestore.DocumentSnapshot) error {
		var m types.Model
		if err := decodeDoc(ctx, doc, &m); err != nil {
			return err
		}
		models = append(models, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// sorted here so the plant_id filter doesn't need a composite index
	sort.Slice(models, func(i, j int) bool {
		return models[i].ModelID < models[j].ModelID
	})
	return models, nil
}

// GetModel returns a single model.
func (f *FirestoreProvider) GetModel(ctx context.Context, modelID string) (types.Model, error) {
	doc, err := f.client.Collection(modelsCollection).Doc(modelID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Model{}, fmt.Errorf("%w: model %s", ErrNotFound, modelID)
		}
		return types.Model{}, fmt.Errorf("failed to get model %s: %w", modelID, err)
	}
	var m types.Model
	if err := decodeDoc(ctx, doc, &m); err != nil {
		return types.Model{}, err
	}
	return m, nil
}

// CreateModel stores a model under its own ID. A non-zero plant ID must name
// an existing plant.
func (f *FirestoreProvider) CreateModel(ctx context.Context, model types.Model) error {
	data, err := encodeDoc(model, map[string]interface{}{"plant_id": model.PlantID})
	if err != nil {
		return fmt.Errorf("failed to marshal model %s: %w", model.ModelID, err)
	}
	ref := f.client.Collection(modelsCollection).Doc(model.ModelID)
	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err == nil {
			return fmt.Errorf("%w: model %s", ErrAlreadyExists, model.ModelID)
		} else if status.Code(err) != codes.NotFound {
			return err
		}
		if model.PlantID != 0 {
			if err := txRequire(tx, f.client.Collection(plantsCollection).Doc(strconv.Itoa(model.PlantID)), "plant"); err != nil {
				return err
			}
		}
		return tx.Create(ref, data)
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: model %s", ErrAlreadyExists, model.ModelID)
		}
		return fmt.Errorf("failed to create model %s: %w", model.ModelID, err)
	}
	return nil
}

// UpdateModel applies the patch inside a transaction. A plant ID of 0
// detaches the model from its plant.
func (f *FirestoreProvider) UpdateModel(ctx context.Context, modelID string, patch types.ModelPatch) (types.Model, error) {
	ref := f.client.Collection(modelsCollection).Doc(modelID)
	var m types.Model
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: model %s", ErrNotFound, modelID)
			}
			return err
		}
		m = types.Model{}
		if err := decodeDoc(ctx, doc, &m); err != nil {
			return err
		}
		patch.Apply(&m)
		if patch.PlantID != nil && *patch.PlantID != 0 {
			if err := txRequire(tx, f.client.Collection(plantsCollection).Doc(strconv.Itoa(*patch.PlantID)), "plant"); err != nil {
				return err
			}
		}
		data, err := encodeDoc(m, map[string]interface{}{"plant_id": m.PlantID})
		if err != nil {
			return err
		}
		return tx.Set(ref, data)
	})
	if err != nil {
		return types.Model{}, fmt.Errorf("failed to update model %s: %w", modelID, err)
	}
	return m, nil
}

// DeleteModel removes a model along with its events.
func (f *FirestoreProvider) DeleteModel(ctx context.Context, modelID string) error {
	ref := f.client.Collection(modelsCollection).Doc(modelID)
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("%w: model %s", ErrNotFound, modelID)
			}
			return err
		}
		events, err := tx.Documents(f.client.Collection(eventsCollection).Where("model_id", "==", modelID)).GetAll()
		if err != nil {
			return err
		}
		for _, doc := range events {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return fmt.Errorf("failed to delete model %s: %w", modelID, err)
	}
	return nil
}

// ListUsers returns the users matching the filter ordered by ID. Firestore has
// no substring search so the search term is applied after reading.
func (f *FirestoreProvider) ListUsers(ctx context.Context, filter types.UserFilter) ([]types.User, error) {
	q := f.client.Collection(usersCollection).Query
	if filter.Role != "" {
		q = q.Where("role", "==", filter.Role)
	}
	var users []types.User
	err := collect(q.Documents(ctx), "users", func(doc *firestore.DocumentSnapshot) error {
		var u types.User
		if err := decodeDoc(ctx, doc, &u); err != nil {
			return err
		}
		if matchesUser(u, filter) {
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID < users[j].ID
	})
	return users, nil
}

// GetUser returns a single user.
func (f *FirestoreProvider) GetUser(ctx context.Context, userID int) (types.User, error) {
	doc, err := f.client.Collection(usersCollection).Doc(strconv.Itoa(userID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.User{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return types.User{}, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	var u types.User
	if err := decodeDoc(ctx, doc, &u); err != nil {
		return types.User{}, err
	}
	return u, nil
}

// CreateUser stores a user under a newly allocated ID. Usernames and emails
// must be unique; each is claimed by a document in userKeysCollection within
// the same transaction that creates the user.
func (f *FirestoreProvider) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	claims := []*firestore.DocumentRef{
		f.client.Collection(userKeysCollection).Doc("username:" + url.PathEscape(user.Username)),
		f.client.Collection(userKeysCollection).Doc("email:" + url.PathEscape(user.Email)),
	}
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.GetAll(claims)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if doc.Exists() {
				return fmt.Errorf("%w: user %s", ErrAlreadyExists, user.Username)
			}
		}
		id, err := f.txNextID(tx, usersCollection)
		if err != nil {
			return err
		}
		user.ID = id
		data, err := encodeDoc(user, map[string]interface{}{
			"role":     user.Role,
			"username": user.Username,
		})
		if err != nil {
			return err
		}
		for _, ref := range claims {
			if err := tx.Create(ref, map[string]interface{}{"user_id": id}); err != nil {
				return err
			}
		}
		return tx.Create(f.client.Collection(usersCollection).Doc(strconv.Itoa(id)), data)
	})
	if err != nil {
		return types.User{}, fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	return user, nil
}

// ListEvents returns the events matching the filter in chronological order.
func (f *FirestoreProvider) ListEvents(ctx context.Context, filter types.EventFilter) ([]types.Event, error) {
	q := f.client.Collection(eventsCollection).Query
	if filter.ModelID != "" {
		q = q.Where("model_id", "==", filter.ModelID)
	}
	var events []types.Event
	err := collect(q.Documents(ctx), "events", func(doc *firestore.DocumentSnapshot) error {
		var e types.Event
		if err := decodeDoc(ctx, doc, &e); err != nil {
			return err
		}
		events = append(events, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Datetime.Equal(events[j].Datetime) {
			return events[i].ID < events[j].ID
		}
		return events[i].Datetime.Before(events[j].Datetime)
	})
	return events, nil
}

// CreateEvent stores an event under a newly allocated ID. The event's model
// must exist.
func (f *FirestoreProvider) CreateEvent(ctx context.Context, event types.Event) (types.Event, error) {
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := txRequire(tx, f.client.Collection(modelsCollection).Doc(event.ModelID), "model"); err != nil {
			return err
		}
		id, err := f.txNextID(tx, eventsCollection)
		if err != nil {
			return err
		}
		event.ID = id
		data, err := encodeDoc(event, map[string]interface{}{
			"model_id":  event.ModelID,
			"timestamp": event.Datetime,
		})
		if err != nil {
			return err
		}
		return tx.Create(f.client.Collection(eventsCollection).Doc(strconv.Itoa(id)), data)
	})
	if err != nil {
		return types.Event{}, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}
