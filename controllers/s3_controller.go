package controllers

import (
	"net/http"

	"chatsync_server/services"

	"go.uber.org/zap"
)

// MediaController hands out presigned URLs for direct S3 uploads and downloads
type MediaController struct {
	MediaService *services.MediaService
	logger       *zap.Logger
}

func NewMediaController(service *services.MediaService, logger *zap.Logger) *MediaController {
	return &MediaController{MediaService: service, logger: logger.Named("http")}
}

// GeneratePresignedURL generates a presigned URL for S3 uploads
func (c *MediaController) GeneratePresignedURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.FileName == "" || payload.FileType == "" {
		WriteError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	c.logger.Info("🔏 Generating pre-signed URL", zap.String("fileName", payload.FileName), zap.String("fileType", payload.FileType))
	url, fileName, err := c.MediaService.PresignUpload(r.Context(), payload.FileName, payload.FileType)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url, "fileName": fileName})
}

// GetPresignedReadURL generates a presigned URL for reading S3 objects
func (c *MediaController) GetPresignedReadURL(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Key == "" {
		WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	url, err := c.MediaService.PresignRead(r.Context(), payload.Key)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}
