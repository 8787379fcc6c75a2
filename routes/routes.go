package routes

import (
	"net/http"

	"chatsync_server/controllers"
	"chatsync_server/metrics"

	"github.com/gorilla/mux"
)

// NewRouter sets up every HTTP route of the server
func NewRouter(
	auth *controllers.AuthController,
	users *controllers.UserController,
	chat *controllers.ChatController,
	calls *controllers.CallController,
	media *controllers.MediaController,
	authMW *controllers.AuthMiddleware,
	m *metrics.Metrics,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(controllers.MetricsMiddleware(m))
	RegisterRoutes(r, m)

	// Authenticated API
	api := r.PathPrefix("/api").Subrouter()
	protected := api.NewRoute().Subrouter()
	protected.Use(authMW.Middleware)

	RegisterAuthRoutes(api, protected, auth)
	RegisterUserRoutes(protected, users)
	RegisterChatRoutes(protected, chat)
	RegisterCallRoutes(api, protected, calls)
	RegisterS3Routes(r, authMW, media)
	return r
}

// RegisterRoutes sets up the public routes of the application
func RegisterRoutes(r *mux.Router, m *metrics.Metrics) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/privacy-policy", PrivacyPolicyHandler).Methods("GET")
	if m != nil {
		r.Handle("/metrics", m.Handler()).Methods("GET")
	} else {
		r.Handle("/metrics", http.NotFoundHandler())
	}
}
