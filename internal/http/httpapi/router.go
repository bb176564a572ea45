package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"vidgen/internal/http/handlers"
	"vidgen/internal/infra"
	"vidgen/internal/middleware"
	"vidgen/internal/realtime"
)

// NewRouter assembles the HTTP surface: auth, video CRUD, the WebSocket
// channel and health, with the middleware stack the routes share.
func NewRouter(cfg *infra.Config, app *handlers.App, ws *realtime.Handler, logger infra.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(allowedOrigins(cfg)),
		middleware.RateLimit(cfg.RateLimitPerWindow, 15*time.Minute),
	)

	r.Get("/health", app.Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.AuthLimitPerWindow, 15*time.Minute))
			r.Post("/register", app.Register)
			r.Post("/login", app.Login)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(cfg.JWTSecret))
			r.Get("/profile", app.Profile)
		})
	})

	r.Route("/api/videos", func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.VideoLimitPerMinute, time.Minute))
			r.Post("/create", app.VideosCreate)
			r.Post("/remix/{id}", app.VideoRemix)
		})
		r.Get("/", app.VideosList)
		r.Get("/status/{id}", app.VideoStatus)
		r.Get("/{id}/download", app.VideoDownload)
		r.Delete("/{id}", app.VideoDelete)
	})

	// Channel auth happens inside the handler: the bearer token arrives at
	// channel-open time, not as an Authorization header the middleware sees.
	r.Get("/ws", ws.ServeWS)

	return r
}

func allowedOrigins(cfg *infra.Config) []string {
	origins := []string{
		"http://localhost:3000",
		"http://localhost:3001",
	}
	if cfg.FrontendURL != "" {
		origins = append(origins, cfg.FrontendURL)
	}
	return origins
}
