package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/solarforecast/solarforecast/pkg/log"
	"github.com/solarforecast/solarforecast/pkg/storage"
	"github.com/solarforecast/solarforecast/pkg/types"
)

var (
	modelParameters = []string{"temperature", "humidity", "wind-speed"}

	modelCustomParameters = []types.CustomParameter{
		{Name: "Mock string", Type: "string", Value: "test"},
		{Name: "Mock number", Type: "number", Value: "1"},
		{Name: "Mock boolean", Type: "boolean", Value: "true"},
	}

	modelMetrics = []types.ModelMetric{
		{Name: "F1 Score", Abbr: "F1", Value: 0.85, Unit: ""},
		{Name: "Mean Absolute Error", Abbr: "MAE", Value: 0.5, Unit: "kW"},
		{Name: "Root Mean Squared Error", Abbr: "RMSE", Value: 0.75, Unit: "kW"},
		{Name: "R-squared", Abbr: "R²", Value: 0.89, Unit: ""},
	}

	modelRunTimes = []string{"2025-01-14T21:45:49.900Z"}
)

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter types.ModelFilter
	if v := r.URL.Query().Get("plant_id"); v != "" {
		plantID, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, "invalid plant_id", http.StatusBadRequest)
			return
		}
		filter.PlantID = &plantID
	}

	models, err := s.storage.ListModels(ctx, filter)
	if err != nil {
		writeStorageError(ctx, w, err, "models")
		return
	}
	if models == nil {
		models = []types.Model{}
	}
	writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modelID := r.PathValue("model_id")
	model, err := s.storage.GetModel(ctx, modelID)
	if err != nil {
		writeStorageError(ctx, w, err, "model")
		return
	}

	var plantName string
	plant, err := s.storage.GetPlant(ctx, model.PlantID)
	switch {
	case err == nil:
		plantName = plant.PlantName
	case errors.Is(err, storage.ErrNotFound):
		log.Ctx(ctx).WarnContext(ctx, "model references missing plant", slog.String("modelID", modelID), slog.Int("plantID", model.PlantID))
	default:
		writeStorageError(ctx, w, err, "plant")
		return
	}

	now := s.now()
	writeJSON(w, http.StatusOK, types.ModelDetail{
		ModelID:          model.ModelID,
		ModelName:        model.ModelName,
		Description:      model.Description,
		PlantID:          model.PlantID,
		PlantName:        plantName,
		Accuracy:         model.Accuracy,
		Best:             model.Best,
		Type:             model.Type,
		Status:           model.Status,
		Parameters:       modelParameters,
		CustomParameters: modelCustomParameters,
		Metrics:          modelMetrics,
		Options: types.ModelRunOptions{
			Enabled:  true,
			Auto:     true,
			RunTimes: modelRunTimes,
		},
		MetricsUpdated: now,
		LastRun:        now,
	})
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var model types.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(model.ModelName) == "" {
		writeJSONError(w, "model_name is required", http.StatusBadRequest)
		return
	}
	if model.ModelID == "" {
		model.ModelID = uuid.NewString()
	}

	if err := s.storage.CreateModel(ctx, model); err != nil {
		writeStorageError(ctx, w, err, "model")
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "created model", slog.String("modelID", model.ModelID), slog.Int("plantID", model.PlantID))
	writeJSON(w, http.StatusCreated, messageResponse{
		Message: "New model created",
		ModelID: model.ModelID,
	})
}

// handleReplaceModel overwrites the name, description and plant of a model.
func (s *Server) handleReplaceModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modelID := r.PathValue("model_id")
	var model types.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(model.ModelName) == "" {
		writeJSONError(w, "model_name is required", http.StatusBadRequest)
		return
	}

	patch := types.ModelPatch{
		ModelName:   &model.ModelName,
		Description: &model.Description,
		PlantID:     &model.PlantID,
	}
	if _, err := s.storage.UpdateModel(ctx, modelID, patch); err != nil {
		writeStorageError(ctx, w, err, "model")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Model with id %s has been updated", modelID),
		ModelID: modelID,
	})
}

func (s *Server) handlePatchModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modelID := r.PathValue("model_id")
	var patch types.ModelPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.ModelName != nil && strings.TrimSpace(*patch.ModelName) == "" {
		writeJSONError(w, "model_name cannot be empty", http.StatusBadRequest)
		return
	}

	model, err := s.storage.UpdateModel(ctx, modelID, patch)
	if err != nil {
		writeStorageError(ctx, w, err, "model")
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	modelID := r.PathValue("model_id")
	if err := s.storage.DeleteModel(ctx, modelID); err != nil {
		writeStorageError(ctx, w, err, "model")
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "deleted model", slog.String("modelID", modelID))
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Model with id %s has been deleted.", modelID),
	})
}

type runModelRequest struct {
	ModelID string `json:"model_id"`
}

// handleRunModel acknowledges a manual model run. When the body names a model
// the run is recorded as an event for it.
func (s *Server) handleRunModel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req runModelRequest
	// an empty body is a run without a model
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.ModelID != "" {
		if _, err := s.storage.GetModel(ctx, req.ModelID); err != nil {
			writeStorageError(ctx, w, err, "model")
			return
		}
		if _, err := s.storage.CreateEvent(ctx, types.Event{
			ModelID:     req.ModelID,
			Status:      "success",
			Datetime:    s.now(),
			Description: "Manual run",
		}); err != nil {
			writeStorageError(ctx, w, err, "event")
			return
		}
		log.Ctx(ctx).InfoContext(ctx, "model run requested", slog.String("modelID", req.ModelID))
	}

	writeJSON(w, http.StatusOK, "success")
}
