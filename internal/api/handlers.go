package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/mission-planner/internal/config"
	"github.com/yegors/mission-planner/internal/geo"
	"github.com/yegors/mission-planner/internal/mission"
	"github.com/yegors/mission-planner/internal/planner"
	"github.com/yegors/mission-planner/internal/qgc"
	"github.com/yegors/mission-planner/internal/storage/sqlite"
	"github.com/yegors/mission-planner/internal/waypoints"
	"github.com/yegors/mission-planner/internal/websocket"
	"github.com/yegors/mission-planner/pkg/logger"
)

// ExportHistory stores and lists mission files that passed through the server
type ExportHistory interface {
	SaveExport(ctx context.Context, record *sqlite.ExportRecord) error
	ListExports(ctx context.Context, limit, offset int) ([]*sqlite.ExportRecord, error)
	GetExport(ctx context.Context, id string) (*sqlite.ExportRecord, error)
}

// Handler contains the API handlers
type Handler struct {
	planner   *planner.Service
	waypoints *waypoints.Store
	exports   ExportHistory
	config    *config.Config
	logger    *logger.Logger
	wsServer  *websocket.Server
	started   time.Time
}

// NewHandler creates a new API handler. exports and wsServer may be nil.
func NewHandler(plannerService *planner.Service, waypointStore *waypoints.Store, exports ExportHistory, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		planner:   plannerService,
		waypoints: waypointStore,
		exports:   exports,
		config:    config,
		logger:    logger.Named("api-handler"),
		wsServer:  wsServer,
		started:   time.Now(),
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"commands":       h.planner.Mission().Len(),
		"waypoints":      len(h.waypoints.Current()),
	}
	if h.wsServer != nil {
		response["websocket_clients"] = h.wsServer.ClientCount()
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	params := h.planner.Params()
	publicConfig := map[string]any{
		"frame": h.planner.Frame(),
		"flight": map[string]any{
			"takeoff_speed":    params.TakeoffSpeed,
			"landing_speed":    params.LandingSpeed,
			"default_speed":    params.DefaultSpeed,
			"default_altitude": h.planner.DefaultAltitude(),
		},
		"export": map[string]any{
			"mission_name": h.config.Export.MissionName,
			"filename":     h.config.Export.Filename,
		},
		"server": map[string]any{
			"max_upload_kb": h.config.Server.MaxUploadKB,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// GetMission returns the commands, validation result and rounded statistics
func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.planner.Snapshot())
}

// ClearMission removes every command
func (h *Handler) ClearMission(w http.ResponseWriter, r *http.Request) {
	h.planner.Clear()
	WriteJSON(w, http.StatusOK, h.planner.Snapshot())
}

// AppendCommand adds a command to the end of the mission
func (h *Handler) AppendCommand(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	cmd, err := mission.UnmarshalCommand(body)
	if err != nil {
		h.writeError(w, badRequest(err))
		return
	}
	added, err := h.planner.Append(cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}

	raw, err := mission.MarshalCommand(added)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"command": json.RawMessage(raw),
		"mission": h.planner.Snapshot(),
	})
}

// RemoveCommand deletes the command at {index}
func (h *Handler) RemoveCommand(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.planner.RemoveAt(index); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.planner.Snapshot())
}

// UpdateCommand merges a JSON patch into the command at {index}
func (h *Handler) UpdateCommand(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var patch mission.Patch
	if err := h.decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.planner.UpdateCommand(index, patch); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.planner.Snapshot())
}

// MoveCommand reorders the mission
func (h *Handler) MoveCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.From == nil || req.To == nil {
		h.writeError(w, badRequest(errors.New("both from and to are required")))
		return
	}
	if err := h.planner.MoveTo(*req.From, *req.To); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.planner.Snapshot())
}

// SetWaypointAltitudes sets the altitude of every waypoint
func (h *Handler) SetWaypointAltitudes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Altitude *float64 `json:"altitude"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Altitude == nil {
		h.writeError(w, badRequest(errors.New("altitude is required")))
		return
	}
	if err := h.planner.SetAllWaypointAltitudes(*req.Altitude); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.planner.Snapshot())
}

// ValidateMission reports whether the mission can be exported
func (h *Handler) ValidateMission(w http.ResponseWriter, r *http.Request) {
	err := h.planner.Validate()
	if err == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"valid": true})
		return
	}
	var verr *mission.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusOK, map[string]any{"valid": false, "error": verr})
		return
	}
	h.writeError(w, err)
}

// GetStats returns rounded distance and time
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.planner.Stats().Rounded())
}

// GetLegs returns the per-leg breakdown
func (h *Handler) GetLegs(w http.ResponseWriter, r *http.Request) {
	legs := h.planner.Legs()
	WriteJSON(w, http.StatusOK, map[string]any{
		"legs":  legs,
		"count": len(legs),
	})
}

// ExportMission downloads the mission as a QGC WPL 110 file
func (h *Handler) ExportMission(w http.ResponseWriter, r *http.Request) {
	text, err := h.planner.ExportQGC(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeAttachment(w, "text/plain; charset=utf-8", h.config.Export.Filename, []byte(text))
}

// ExportMissionKML downloads the mission as KML
func (h *Handler) ExportMissionKML(w http.ResponseWriter, r *http.Request) {
	out, err := h.planner.ExportKML(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeAttachment(w, "application/vnd.google-earth.kml+xml", h.config.Export.MissionName+".kml", out)
}

// ImportMission replaces the mission with an uploaded QGC file
func (h *Handler) ImportMission(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.planner.ImportQGC(string(body)); err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, h.planner.Snapshot())
}

// ListExports returns the export history, newest first
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.Error(w, "Export history not available", http.StatusServiceUnavailable)
		return
	}

	limit := h.config.Storage.MaxExportsInAPI
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	records, err := h.exports.ListExports(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"exports": records,
		"count":   len(records),
		"limit":   limit,
		"offset":  offset,
	})
}

// GetExport returns one stored export including its content
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		http.Error(w, "Export history not available", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing export ID", http.StatusBadRequest)
		return
	}
	record, err := h.exports.GetExport(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// UploadWaypoints parses a QGC file and publishes its positional records
func (h *Handler) UploadWaypoints(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	parsed, err := qgc.Decode(string(body))
	if err != nil {
		h.writeError(w, err)
		return
	}
	list := waypoints.FromParsed(parsed)
	if err := h.waypoints.Publish(list); err != nil {
		h.writeError(w, err)
		return
	}

	if h.exports != nil {
		err := h.exports.SaveExport(r.Context(), &sqlite.ExportRecord{
			Format:       sqlite.FormatUpload,
			CommandCount: len(list),
			Content:      string(body),
		})
		if err != nil {
			h.logger.Warn("Failed to record upload", logger.Error(err))
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"waypoints": list,
		"count":     len(list),
	})
}

// GetWaypoints returns the last published waypoint list
func (h *Handler) GetWaypoints(w http.ResponseWriter, r *http.Request) {
	list := h.waypoints.Current()
	WriteJSON(w, http.StatusOK, map[string]any{
		"waypoints": list,
		"count":     len(list),
	})
}

// SetFrameOrigin moves the local frame origin
func (h *Handler) SetFrameOrigin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Lat == nil || req.Lon == nil {
		h.writeError(w, badRequest(errors.New("lat and lon are required")))
		return
	}
	frame, err := h.planner.SetOrigin(*req.Lat, *req.Lon)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, frame)
}

// ToLocal converts a geodetic position to the local frame
func (h *Handler) ToLocal(w http.ResponseWriter, r *http.Request) {
	var req geo.Position
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	p, err := h.planner.Frame().ToLocal(req.Lat, req.Lon, req.Alt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// ToGeodetic converts a local frame point back to latitude, longitude and altitude
func (h *Handler) ToGeodetic(w http.ResponseWriter, r *http.Request) {
	var req geo.Vec3
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	lat, lon, alt, err := h.planner.Frame().ToGeodetic(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, geo.Position{Lat: lat, Lon: lon, Alt: alt})
}

// requestError marks client mistakes that are not domain errors
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{status: http.StatusBadRequest, err: err}
}

func indexParam(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badRequest(fmt.Errorf("invalid command index %q", chi.URLParam(r, "index")))
	}
	return index, nil
}

// readBody reads the request body up to the configured upload limit
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := int64(h.config.Server.MaxUploadKB) * 1024
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge, err: fmt.Errorf("request body exceeds %d KB", h.config.Server.MaxUploadKB)}
		}
		return nil, badRequest(fmt.Errorf("failed to read request body: %w", err))
	}
	return body, nil
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := h.readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest(fmt.Errorf("invalid JSON: %w", err))
	}
	return nil
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		reqErr   *requestError
		validErr *mission.ValidationError
		parseErr *qgc.ParseError
	)

	switch {
	case errors.As(err, &reqErr):
		WriteJSON(w, reqErr.status, map[string]any{"error": err.Error()})
	case errors.As(err, &validErr):
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": validErr.Message,
			"code":  validErr.Code,
		})
	case errors.As(err, &parseErr):
		WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error": err.Error(),
			"kind":  parseErr.Kind.Error(),
			"line":  parseErr.Line,
		})
	case errors.Is(err, geo.ErrInvalidCoordinate),
		errors.Is(err, geo.ErrPoleProximity),
		errors.Is(err, mission.ErrInvalidParameter),
		errors.Is(err, mission.ErrUnknownCommand):
		WriteJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, mission.ErrIndexOutOfRange),
		errors.Is(err, sqlite.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, waypoints.ErrClosed):
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
	default:
		h.logger.Error("Request failed", logger.Error(err))
		WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
	}
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
