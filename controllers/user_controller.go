package controllers

import (
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"chatsync_server/models"
	"chatsync_server/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxUploadSize bounds multipart bodies
const maxUploadSize = 32 << 20

type UserController struct {
	UserService     *services.UserService
	PresenceService *services.PresenceService
	logger          *zap.Logger
}

func NewUserController(users *services.UserService, presence *services.PresenceService, logger *zap.Logger) *UserController {
	return &UserController{UserService: users, PresenceService: presence, logger: logger.Named("http")}
}

func (c *UserController) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := c.UserService.GetUser(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, user)
}

// HandleUpdateUser edits the caller's own profile
func (c *UserController) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	if uid != CurrentUser(r.Context()).UID {
		WriteError(w, http.StatusForbidden, "cannot edit another user's profile")
		return
	}
	var user models.User
	if !decodeJSON(w, r, &user) {
		return
	}
	user.UID = uid

	updated, err := c.UserService.UpdateUser(r.Context(), user)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, updated)
}

// HandleUploadAvatar stores the multipart "file" as the caller's avatar
func (c *UserController) HandleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	file, header, ok := readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	url, err := c.UserService.UploadAvatar(r.Context(), CurrentUser(r.Context()).UID, file, extOf(header), header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"avatarUrl": url})
}

// HandleForeground marks the caller online
func (c *UserController) HandleForeground(w http.ResponseWriter, r *http.Request) {
	c.setPresence(w, r, true)
}

// HandleBackground marks the caller offline
func (c *UserController) HandleBackground(w http.ResponseWriter, r *http.Request) {
	c.setPresence(w, r, false)
}

func (c *UserController) setPresence(w http.ResponseWriter, r *http.Request, online bool) {
	uid := CurrentUser(r.Context()).UID
	var err error
	if online {
		err = c.PresenceService.SetOnline(r.Context(), uid)
	} else {
		err = c.PresenceService.SetOffline(r.Context(), uid)
	}
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]bool{"isOnline": online})
}

// readUpload opens the multipart "file" field
func readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return nil, nil, false
	}
	return file, header, true
}

func extOf(header *multipart.FileHeader) string {
	return strings.TrimPrefix(filepath.Ext(header.Filename), ".")
}
