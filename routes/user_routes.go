package routes

import (
	"chatsync_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterUserRoutes sets up profile and presence routes
func RegisterUserRoutes(r *mux.Router, controller *controllers.UserController) {
	r.HandleFunc("/users/me/avatar", controller.HandleUploadAvatar).Methods("POST")
	r.HandleFunc("/users/{uid}", controller.HandleGetUser).Methods("GET")
	r.HandleFunc("/users/{uid}", controller.HandleUpdateUser).Methods("PUT")

	r.HandleFunc("/presence/foreground", controller.HandleForeground).Methods("POST")
	r.HandleFunc("/presence/background", controller.HandleBackground).Methods("POST")
}
