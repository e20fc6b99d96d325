package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/isdelr/mealsnap-be/internal/api/handlers"
	"github.com/isdelr/mealsnap-be/internal/nutrition"
	"github.com/isdelr/mealsnap-be/internal/services"
	"github.com/isdelr/mealsnap-be/internal/web"
)

// Options carries the settings the router needs from the configuration.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewRouter creates and configures a new Chi router.
func NewRouter(
	opts Options,
	db handlers.Pinger,
	userService services.UserServiceProvider,
	mealService services.MealServiceProvider,
	analyzer nutrition.Analyzer,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(LimitBody(opts.MaxUploadBytes))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Initialize handlers
	systemHandler := handlers.NewSystemHandler(db, web.Index)
	userHandler := handlers.NewUserHandler(userService)
	mealHandler := handlers.NewMealHandler(mealService)
	uploadHandler := handlers.NewUploadHandler(analyzer)

	r.Get("/", systemHandler.Index)
	r.Get("/healthz", systemHandler.Health)

	r.Post("/upload", uploadHandler.Upload)

	r.Post("/save_meal", mealHandler.Save)
	r.Get("/meals", mealHandler.List)
	r.Get("/meal_history", mealHandler.History)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Create)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Not found"}` + "\n"))
	})

	return r
}
