package routes

import (
	"chatsync_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterChatRoutes sets up routes for chat rooms under /api/chatrooms
func RegisterChatRoutes(r *mux.Router, controller *controllers.ChatController) {
	chatRouter := r.PathPrefix("/chatrooms").Subrouter()

	chatRouter.HandleFunc("/direct", controller.HandleCreateDirect).Methods("POST")
	chatRouter.HandleFunc("/group", controller.HandleCreateGroup).Methods("POST")
	chatRouter.HandleFunc("/{roomId}", controller.HandleGetRoom).Methods("GET")
	chatRouter.HandleFunc("/{roomId}", controller.HandleDeleteRoom).Methods("DELETE")

	chatRouter.HandleFunc("/{roomId}/messages", controller.HandleSendMessage).Methods("POST")
	chatRouter.HandleFunc("/{roomId}/attachments", controller.HandleUploadAttachment).Methods("POST")
	chatRouter.HandleFunc("/{roomId}/read", controller.HandleMarkAsRead).Methods("POST")

	// Group management
	chatRouter.HandleFunc("/{roomId}/name", controller.HandleUpdateGroupName).Methods("PUT")
	chatRouter.HandleFunc("/{roomId}/avatar", controller.HandleUploadGroupAvatar).Methods("POST")
	chatRouter.HandleFunc("/{roomId}/members", controller.HandleAddMember).Methods("POST")
	chatRouter.HandleFunc("/{roomId}/members/{uid}", controller.HandleRemoveMember).Methods("DELETE")
	chatRouter.HandleFunc("/{roomId}/admins/{uid}", controller.HandleAddAdmin).Methods("POST")
	chatRouter.HandleFunc("/{roomId}/admins/{uid}", controller.HandleRemoveAdmin).Methods("DELETE")
}
