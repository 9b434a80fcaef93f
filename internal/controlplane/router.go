package controlplane

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hapcore/hapd/internal/logger"
)

// NewRouter builds the control-plane's chi router.
//
// Routes:
//   - GET  /sessions              session inventory
//   - POST /sessions/{id}/close   administrative force-close
//   - GET  /accessories           unauthenticated accessory tree (admin view)
//
// The router is unauthenticated by design: it is meant to be bound to
// loopback only (see ControlPlaneConfig.Addr), never exposed on the
// accessory's public interface.
func NewRouter(registry SessionRegistry, accessories AccessoryTreeProvider) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	sessions := newSessionsHandler(registry)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", sessions.List)
		r.Post("/{id}/close", sessions.Close)
	})

	accessoriesHandler := newAccessoriesHandler(accessories)
	r.Get("/accessories", accessoriesHandler.List)

	return r
}

// requestLogger mirrors the accessory server's own request logging, at
// DEBUG to keep the admin surface quiet by default.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("controlplane request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
