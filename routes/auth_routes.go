package routes

import (
	"chatsync_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterAuthRoutes sets up /api/auth; register and login are public
func RegisterAuthRoutes(public, protected *mux.Router, controller *controllers.AuthController) {
	public.HandleFunc("/auth/register", controller.HandleRegister).Methods("POST")
	public.HandleFunc("/auth/login", controller.HandleLogin).Methods("POST")
	protected.HandleFunc("/auth/logout", controller.HandleLogout).Methods("POST")
	protected.HandleFunc("/auth/me", controller.HandleMe).Methods("GET")
}
