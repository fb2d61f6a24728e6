package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/solarforecast/solarforecast/pkg/log"
	"github.com/solarforecast/solarforecast/pkg/types"
)

// plantCustomParameters are shown on every plant until parameters are stored
// per plant.
var plantCustomParameters = []types.CustomParameter{
	{Name: "Mock string", Type: "string", Value: "test"},
	{Name: "Mock number", Type: "number", Value: "1"},
	{Name: "Mock boolean", Type: "boolean", Value: "true"},
}

func plantIDFromPath(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("plant_id"))
	return id, err == nil
}

func (s *Server) handleListPlants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plants, err := s.storage.ListPlants(ctx)
	if err != nil {
		writeStorageError(ctx, w, err, "plants")
		return
	}
	if plants == nil {
		plants = []types.Plant{}
	}
	writeJSON(w, http.StatusOK, plants)
}

func (s *Server) handleGetPlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := plantIDFromPath(r)
	if !ok {
		writeJSONError(w, "invalid plant id", http.StatusBadRequest)
		return
	}
	plant, err := s.storage.GetPlant(ctx, id)
	if err != nil {
		writeStorageError(ctx, w, err, "plant")
		return
	}
	writeJSON(w, http.StatusOK, types.PlantDetail{
		Plant:            plant,
		CustomParameters: plantCustomParameters,
	})
}

func (s *Server) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var plant types.Plant
	if err := json.NewDecoder(r.Body).Decode(&plant); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(plant.PlantName) == "" {
		writeJSONError(w, "plant_name is required", http.StatusBadRequest)
		return
	}
	// server-maintained fields
	plant.PlantID = 0
	plant.Models = 0

	created, err := s.storage.CreatePlant(ctx, plant)
	if err != nil {
		writeStorageError(ctx, w, err, "plant")
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "created plant", slog.Int("plantID", created.PlantID), slog.String("name", created.PlantName))
	writeJSON(w, http.StatusCreated, messageResponse{
		Message: "New power plant created",
		PlantID: created.PlantID,
	})
}

// handleReplacePlant overwrites every editable field of a plant.
func (s *Server) handleReplacePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := plantIDFromPath(r)
	if !ok {
		writeJSONError(w, "invalid plant id", http.StatusBadRequest)
		return
	}
	var plant types.Plant
	if err := json.NewDecoder(r.Body).Decode(&plant); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(plant.PlantName) == "" {
		writeJSONError(w, "plant_name is required", http.StatusBadRequest)
		return
	}

	if _, err := s.storage.UpdatePlant(ctx, id, types.PatchFromPlant(plant)); err != nil {
		writeStorageError(ctx, w, err, "plant")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Power plant with id %d has been updated", id),
		PlantID: id,
	})
}

// handlePatchPlant changes only the fields present in the body and returns the
// updated plant.
func (s *Server) handlePatchPlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := plantIDFromPath(r)
	if !ok {
		writeJSONError(w, "invalid plant id", http.StatusBadRequest)
		return
	}
	var patch types.PlantPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.PlantName != nil && strings.TrimSpace(*patch.PlantName) == "" {
		writeJSONError(w, "plant_name cannot be empty", http.StatusBadRequest)
		return
	}

	plant, err := s.storage.UpdatePlant(ctx, id, patch)
	if err != nil {
		writeStorageError(ctx, w, err, "plant")
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (s *Server) handleDeletePlant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := plantIDFromPath(r)
	if !ok {
		writeJSONError(w, "invalid plant id", http.StatusBadRequest)
		return
	}
	if err := s.storage.DeletePlant(ctx, id); err != nil {
		writeStorageError(ctx, w, err, "plant")
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "deleted plant", slog.Int("plantID", id))
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Power plant with id %d has been deleted.", id),
	})
}
