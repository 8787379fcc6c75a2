package controllers

import (
	"net/http"

	"chatsync_server/services"

	"go.uber.org/zap"
)

// AuthController handles sign-up, sign-in and sign-out
type AuthController struct {
	AuthService *services.AuthService
	logger      *zap.Logger
}

func NewAuthController(service *services.AuthService, logger *zap.Logger) *AuthController {
	return &AuthController{AuthService: service, logger: logger.Named("http")}
}

// HandleRegister creates an account and signs it in
func (c *AuthController) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	if _, err := c.AuthService.Register(r.Context(), request.Name, request.Email, request.Password); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	token, user, err := c.AuthService.Login(r.Context(), request.Email, request.Password)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{"token": token, "user": user})
}

func (c *AuthController) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	token, user, err := c.AuthService.Login(r.Context(), request.Email, request.Password)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

func (c *AuthController) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := c.AuthService.Logout(r.Context(), currentToken(r.Context())); err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleMe returns the signed-in user
func (c *AuthController) HandleMe(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, CurrentUser(r.Context()))
}
