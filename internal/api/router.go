// Package api exposes the reading session, the document library, bookmarks
// and speech settings over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/unalkalkan/VoiceReader/internal/events"
	"github.com/unalkalkan/VoiceReader/internal/health"
	"github.com/unalkalkan/VoiceReader/internal/library"
	"github.com/unalkalkan/VoiceReader/internal/reader"
	"github.com/unalkalkan/VoiceReader/internal/speech"
	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/internal/store"
)

// Deps are the components the API serves. Importer, Blobs, Broker and
// Health are optional.
type Deps struct {
	Session     *reader.Session
	Store       store.Store
	Engines     *speech.Registry
	Importer    *library.Importer
	LibraryDir  string
	Blobs       storage.Adapter
	Broker      *events.Broker
	Health      *health.Handler
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the HTTP handler with every route mounted
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	documents := NewDocumentsHandler(deps.Session, deps.Importer, deps.LibraryDir, deps.Blobs)
	session := NewSessionHandler(deps.Session)
	bookmarks := NewBookmarksHandler(deps.Session, deps.Store)
	voices := NewVoicesHandler(deps.Session, deps.Engines)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	if deps.Health != nil {
		r.Get("/health", deps.Health.HealthHandler())
		r.Get("/health/live", deps.Health.LivenessHandler())
		r.Get("/health/ready", deps.Health.ReadinessHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/documents", documents.List)
		r.Post("/documents", documents.Open)
		r.Delete("/documents/*", documents.Delete)
		r.Post("/library/scan", documents.Scan)

		r.Get("/session", session.Get)
		r.Get("/session/toc", session.TableOfContents)
		r.Post("/session/toc/{index}", session.JumpToTOCEntry)
		r.Get("/session/text", session.Text)
		r.Post("/session/play", session.Play)
		r.Post("/session/pause", session.Pause)
		r.Post("/session/resume", session.Resume)
		r.Post("/session/stop", session.Stop)
		r.Post("/session/seek", session.Seek)

		r.Get("/bookmarks", bookmarks.List)
		r.Post("/bookmarks", bookmarks.Create)
		r.Post("/bookmarks/auto", bookmarks.CreateAuto)
		r.Put("/bookmarks/{id}", bookmarks.Update)
		r.Delete("/bookmarks/{id}", bookmarks.Delete)
		r.Post("/bookmarks/{id}/jump", bookmarks.Jump)

		r.Get("/voices", voices.ListVoices)
		r.Get("/settings", voices.GetSettings)
		r.Put("/settings", voices.UpdateSettings)

		if deps.Broker != nil {
			r.Get("/events", deps.Broker.ServeHTTP)
		}
	})

	c := cors.New(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(r)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
