package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maomaocong/audio-scene-api/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(deps.AuthMiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware. Credentials stay on so the browser sends the
	// access-token cookie.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Every route passes through the gate; whitelisted paths skip
	// token validation inside it.
	r.Use(deps.AuthMiddleware.Authenticate)

	// Health endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/deep", deps.HealthHandler.HandleHealthDeep)

	// Auth endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", deps.AuthHandler.HandleRegister)
		r.Post("/login", deps.AuthHandler.HandleLogin)
		r.Post("/confirm", deps.AuthHandler.HandleConfirm)
		r.Post("/resend-code", deps.AuthHandler.HandleResendCode)
		r.Post("/logout", deps.AuthHandler.HandleLogout)
		r.Get("/user-info", deps.AuthHandler.HandleMe)
		r.Get("/user-groups", deps.AuthHandler.HandleUserGroups)
		r.Get("/is-admin", deps.AuthHandler.HandleIsAdmin)

		// User administration (admin group only)
		r.Group(func(r chi.Router) {
			r.Use(deps.AdminMiddleware.RequireAdmin)
			r.Get("/users", deps.AuthHandler.HandleListUsers)
			r.Post("/set-admin", deps.AuthHandler.HandleSetAdmin)
			r.Post("/remove-admin", deps.AuthHandler.HandleRemoveAdmin)
			r.Get("/registration-setting", deps.AuthHandler.HandleGetRegistrationSetting)
			r.Post("/registration-setting", deps.AuthHandler.HandleSetRegistrationSetting)
		})
	})

	// Scene endpoints
	r.Route("/audio-scene", func(r chi.Router) {
		r.Post("/", deps.SceneHandler.HandleCreate)
		r.Get("/", deps.SceneHandler.HandleList)
		r.Get("/scene/{sceneName}", deps.SceneHandler.HandleListByName)
		r.Get("/{sceneId}", deps.SceneHandler.HandleGet)
		r.Delete("/{sceneId}", deps.SceneHandler.HandleDelete)
	})

	// Audio upload endpoints
	r.Route("/audio", func(r chi.Router) {
		r.Post("/upload-url", deps.AudioHandler.HandleUploadURL)
		r.Get("/url/*", deps.AudioHandler.HandleDownloadURL)
		r.Delete("/", deps.AudioHandler.HandleDelete)
	})

	// Chat generation endpoints
	r.Route("/ai", func(r chi.Router) {
		r.Post("/chat", deps.AIHandler.HandleChat)
		r.Post("/rag-chat", deps.AIHandler.HandleRAGChat)
		r.Post("/stream/chat", deps.AIHandler.HandleChatStream)
		r.Post("/stream/rag-chat", deps.AIHandler.HandleRAGChatStream)
		r.Get("/providers", deps.AIHandler.HandleProviders)
	})

	// Retrieval endpoints, only when a vector store is configured
	if deps.RAGHandler != nil {
		r.Route("/rag", func(r chi.Router) {
			r.Get("/documents", deps.RAGHandler.HandleListDocuments)
			r.Post("/search", deps.RAGHandler.HandleSearch)

			r.Group(func(r chi.Router) {
				r.Use(deps.AdminMiddleware.RequireAdmin)
				r.Post("/documents", deps.RAGHandler.HandleIngest)
				r.Delete("/documents/{documentId}", deps.RAGHandler.HandleDeleteDocument)
			})
		})
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"message":"endpoint not found"}`))
	})

	return r
}
