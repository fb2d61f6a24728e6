package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/solarforecast/solarforecast/pkg/common"
	"github.com/solarforecast/solarforecast/pkg/log"
	"github.com/solarforecast/solarforecast/pkg/series"
	"github.com/solarforecast/solarforecast/pkg/storage"
)

// Server handles the HTTP API for the solar plant dashboard. CRUD requests are
// passed to storage and the chart endpoints are answered with generated series.
type Server struct {
	storage storage.Database

	listenAddr string
	httpServer *http.Server
	serverName string

	dashboardPlants []string

	now func() time.Time
	rng series.Rand
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(s storage.Database) *Server {
	srv := &Server{
		storage:    s,
		serverName: common.ServerName(),
		now:        time.Now,
		rng:        series.DefaultRand,
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	dashboardPlants := lflag.String("dashboard-plants", "SE Vis, SE Drava, SE Kaštelir", "comma-delimited list of plant names shown on the dashboard production chart")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.dashboardPlants = splitList(*dashboardPlants)
	})

	return srv
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /dashboard/production_data", s.handleProductionData)
	mux.HandleFunc("GET /dashboard/plant_overview", s.handlePlantOverview)
	mux.HandleFunc("GET /forecasts/{plant_id}", s.handleForecasts)
	mux.HandleFunc("GET /metrics/available", s.handleAvailableMetrics)
	mux.HandleFunc("GET /metrics/{model_id}", s.handleMetrics)

	mux.HandleFunc("GET /power_plants", s.handleListPlants)
	mux.HandleFunc("POST /power_plants", s.handleCreatePlant)
	mux.HandleFunc("GET /power_plants/{plant_id}", s.handleGetPlant)
	mux.HandleFunc("PUT /power_plants/{plant_id}", s.handleReplacePlant)
	mux.HandleFunc("PATCH /power_plants/{plant_id}", s.handlePatchPlant)
	mux.HandleFunc("DELETE /power_plants/{plant_id}", s.handleDeletePlant)

	mux.HandleFunc("GET /models", s.handleListModels)
	mux.HandleFunc("POST /models", s.handleCreateModel)
	mux.HandleFunc("GET /models/weather_params", s.handleWeatherParams)
	mux.HandleFunc("POST /models/run", s.handleRunModel)
	mux.HandleFunc("GET /models/{model_id}", s.handleGetModel)
	mux.HandleFunc("PUT /models/{model_id}", s.handleReplaceModel)
	mux.HandleFunc("PATCH /models/{model_id}", s.handlePatchModel)
	mux.HandleFunc("DELETE /models/{model_id}", s.handleDeleteModel)

	mux.HandleFunc("GET /users", s.handleListUsers)
	mux.HandleFunc("GET /users/roles", s.handleRoles)
	mux.HandleFunc("GET /users/{user_id}", s.handleGetUser)

	mux.HandleFunc("GET /events", s.handleListEvents)
	mux.HandleFunc("POST /upload", s.handleUpload)

	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(s.requestLogMiddleware(mux))))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

type messageResponse struct {
	Message string `json:"message"`
	PlantID int    `json:"plant_id,omitempty"`
	ModelID string `json:"model_id,omitempty"`
}

// writeStorageError maps a storage error onto a response. what names the
// record in the client-facing message.
func writeStorageError(ctx context.Context, w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSONError(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrAlreadyExists):
		writeJSONError(w, what+" already exists", http.StatusConflict)
	case errors.Is(err, storage.ErrInvalidReference):
		writeJSONError(w, what+" references a missing record", http.StatusBadRequest)
	default:
		log.Ctx(ctx).ErrorContext(ctx, "storage request failed", slog.String("record", what), slog.Any("error", err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
