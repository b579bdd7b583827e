package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/mission-planner/internal/config"
	"github.com/yegors/mission-planner/internal/planner"
	"github.com/yegors/mission-planner/internal/waypoints"
	"github.com/yegors/mission-planner/internal/websocket"
	"github.com/yegors/mission-planner/pkg/logger"
)

// Router builds the HTTP routes of the planner
type Router struct {
	handler  *Handler
	config   *config.Config
	logger   *logger.Logger
	wsServer *websocket.Server
}

// NewRouter creates a new router
func NewRouter(plannerService *planner.Service, waypointStore *waypoints.Store, exports ExportHistory, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler:  NewHandler(plannerService, waypointStore, exports, cfg, log, wsServer),
		config:   cfg,
		logger:   log.Named("router"),
		wsServer: wsServer,
	}
}

// Routes returns the router's handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(rt.cors)

	h := rt.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.GetHealth)
		r.Get("/config", h.GetConfig)

		r.Route("/mission", func(r chi.Router) {
			r.Get("/", h.GetMission)
			r.Delete("/", h.ClearMission)
			r.Post("/commands", h.AppendCommand)
			r.Post("/commands/move", h.MoveCommand)
			r.Delete("/commands/{index}", h.RemoveCommand)
			r.Patch("/commands/{index}", h.UpdateCommand)
			r.Put("/waypoints/altitude", h.SetWaypointAltitudes)
			r.Get("/validate", h.ValidateMission)
			r.Get("/stats", h.GetStats)
			r.Get("/legs", h.GetLegs)
			r.Get("/export", h.ExportMission)
			r.Get("/export.kml", h.ExportMissionKML)
			r.Post("/import", h.ImportMission)
		})

		r.Get("/exports", h.ListExports)
		r.Get("/exports/{id}", h.GetExport)

		r.Post("/waypoints/upload", h.UploadWaypoints)
		r.Get("/waypoints", h.GetWaypoints)

		r.Post("/frame", h.SetFrameOrigin)
		r.Post("/frame/to-local", h.ToLocal)
		r.Post("/frame/to-geodetic", h.ToGeodetic)
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}

	if dir := rt.config.Server.StaticFilesDir; dir != "" {
		r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
	}

	return r
}

// cors answers preflight requests and sets the allowed origin
func (rt *Router) cors(next http.Handler) http.Handler {
	allowed := rt.config.Server.CORSAllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allow := allowedOrigin(allowed, origin); allow != "" {
				w.Header().Set("Access-Control-Allow-Origin", allow)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
				w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
				w.Header().Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func allowedOrigin(allowed []string, origin string) string {
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if strings.EqualFold(a, origin) {
			return origin
		}
	}
	return ""
}

func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		rt.logger.Debug("Handled request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())))
	})
}
