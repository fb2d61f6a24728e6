package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/solarforecast/solarforecast/pkg/log"
	"github.com/solarforecast/solarforecast/pkg/types"
)

// placeholderAvatarURL is returned for every upload until uploads are stored.
const placeholderAvatarURL = "https://i.pravatar.cc/300"

// maxUploadBytes caps how much of an upload body is read.
const maxUploadBytes = 10 << 20

func (s *Server) handleRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.Roles)
}

func (s *Server) handleWeatherParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.WeatherParams)
}

func (s *Server) handleAvailableMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.AvailableMetrics)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := io.Copy(io.Discard, http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeJSONError(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}
	log.Ctx(ctx).DebugContext(ctx, "discarded upload", slog.Int64("bytes", n))
	writeJSON(w, http.StatusOK, struct {
		URL string `json:"url"`
	}{URL: placeholderAvatarURL})
}
