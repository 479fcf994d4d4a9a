// internal/handlers/api.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/wordhex/internal/app"
	"github.com/jason-s-yu/wordhex/internal/middleware"
	"github.com/sirupsen/logrus"
)

// API exposes one lobby context over HTTP and WebSocket.
type API struct {
	app    *app.App
	logger *logrus.Logger
}

// NewAPI binds handlers to a.
func NewAPI(a *app.App) *API {
	return &API{app: a, logger: a.Logger}
}

// Router builds the chi router with CORS, request ids, panic recovery and request logging.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LogMiddleware(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/session", a.CreateSession)

	r.Route("/profile", func(r chi.Router) {
		r.Get("/", a.GetProfile)
		r.Patch("/", a.UpdateProfile)
	})

	r.Route("/lobbies", func(r chi.Router) {
		r.Get("/", a.ListLobbies)
		r.Post("/", a.CreateLobby)
		r.Get("/ws", a.LobbyListWS)
		r.Get("/defaults", a.LobbyDefaults)

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", a.GetLobby)
			r.Put("/", a.EnsureLobby)
			r.Post("/join", a.JoinLobby)
			r.Post("/ready", a.SetReady)
			r.Post("/score", a.IncrementScore)
			r.Post("/name", a.RenamePlayer)
			r.Post("/status", a.SetStatus)
			r.Get("/ws", a.LobbyWS)
		})
	})
	return r
}

// allowedOrigins relaxes CORS outside production.
func (a *API) allowedOrigins() []string {
	if a.app.Config.Env == "production" && len(a.app.Config.AllowedOrigins) > 0 {
		return a.app.Config.AllowedOrigins
	}
	return []string{"https://*", "http://*"}
}
