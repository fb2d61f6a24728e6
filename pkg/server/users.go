package server

import (
	"net/http"
	"strconv"

	"github.com/solarforecast/solarforecast/pkg/types"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := types.UserFilter{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
	}
	users, err := s.storage.ListUsers(ctx, filter)
	if err != nil {
		writeStorageError(ctx, w, err, "users")
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.Atoi(r.PathValue("user_id"))
	if err != nil {
		writeJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}
	user, err := s.storage.GetUser(ctx, id)
	if err != nil {
		writeStorageError(ctx, w, err, "user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := types.EventFilter{
		ModelID: r.URL.Query().Get("model_id"),
	}
	events, err := s.storage.ListEvents(ctx, filter)
	if err != nil {
		writeStorageError(ctx, w, err, "events")
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
