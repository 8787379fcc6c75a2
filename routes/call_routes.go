package routes

import (
	"chatsync_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterCallRoutes sets up call logging; the SDK webhook authenticates with its shared secret
func RegisterCallRoutes(public, protected *mux.Router, controller *controllers.CallController) {
	protected.HandleFunc("/chatrooms/{roomId}/calls", controller.HandleStartCall).Methods("POST")
	public.HandleFunc("/calls/events", controller.HandleCallEvent).Methods("POST")
}
