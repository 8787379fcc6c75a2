package routes

import (
	"chatsync_server/controllers"

	"github.com/gorilla/mux"
)

// RegisterS3Routes sets up routes for S3 presigned URLs
func RegisterS3Routes(r *mux.Router, authMW *controllers.AuthMiddleware, controller *controllers.MediaController) {
	s3Router := r.NewRoute().Subrouter()
	s3Router.Use(authMW.Middleware)
	s3Router.HandleFunc("/generate-presigned-url", controller.GeneratePresignedURL).Methods("POST")
	s3Router.HandleFunc("/get-presigned-read-url", controller.GetPresignedReadURL).Methods("POST")
}
