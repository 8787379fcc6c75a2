package controllers

import (
	"net/http"

	"chatsync_server/models"
	"chatsync_server/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ChatController handles room, message and group commands. Live state is served over the socket.
type ChatController struct {
	ChatService *services.ChatService
	logger      *zap.Logger
}

// NewChatController initializes the chat controller
func NewChatController(service *services.ChatService, logger *zap.Logger) *ChatController {
	return &ChatController{ChatService: service, logger: logger.Named("http")}
}

// memberRoom loads the room of the request and checks that the caller belongs to it
func (c *ChatController) memberRoom(w http.ResponseWriter, r *http.Request) (*models.ChatRoom, bool) {
	room, err := c.ChatService.GetChatRoom(r.Context(), mux.Vars(r)["roomId"])
	if err != nil {
		writeServiceError(w, c.logger, err)
		return nil, false
	}
	if !room.HasMember(CurrentUser(r.Context()).UID) {
		writeServiceError(w, c.logger, services.ErrNotMember)
		return nil, false
	}
	return room, true
}

func (c *ChatController) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleGetRoom returns the room once
func (c *ChatController) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	WriteJSONResponse(w, http.StatusOK, room)
}

// HandleCreateDirect opens (or reuses) the one-to-one room with the user behind email
func (c *ChatController) HandleCreateDirect(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	roomID, otherID, err := c.ChatService.CreateOneToOneChatByEmail(r.Context(), CurrentUser(r.Context()).UID, request.Email)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"roomId": roomID, "otherUserId": otherID})
}

func (c *ChatController) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Emails    []string `json:"emails"`
		GroupName string   `json:"groupName"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	roomID, err := c.ChatService.CreateGroupChatByEmails(r.Context(), CurrentUser(r.Context()).UID, request.Emails, request.GroupName)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

func (c *ChatController) HandleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	c.respond(w, c.ChatService.DeleteChatRoom(r.Context(), room.RoomID))
}

// HandleSendMessage sends a message as the caller
func (c *ChatController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	var message models.ChatMessage
	if !decodeJSON(w, r, &message) {
		return
	}
	message.SenderID = CurrentUser(r.Context()).UID
	message.MessageID = ""
	message.Timestamp = 0

	sent, err := c.ChatService.SendMessage(r.Context(), room.RoomID, message)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, sent)
}

// HandleUploadAttachment uploads the multipart "file" and sends it as the "type" form value
func (c *ChatController) HandleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	file, header, ok := readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	kind := r.FormValue("type")
	if kind == "" {
		kind = models.MessageTypeFile
	}
	sent, err := c.ChatService.UploadAndSend(r.Context(), room.RoomID, CurrentUser(r.Context()).UID, kind,
		file, header.Filename, extOf(header), header.Size)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, sent)
}

// HandleMarkAsRead resets the caller's unread counter
func (c *ChatController) HandleMarkAsRead(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	c.respond(w, c.ChatService.MarkAsRead(r.Context(), room.RoomID, CurrentUser(r.Context()).UID))
}

func (c *ChatController) HandleUpdateGroupName(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	var request struct {
		GroupName string `json:"groupName"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}
	c.respond(w, c.ChatService.UpdateGroupName(r.Context(), room.RoomID, request.GroupName))
}

func (c *ChatController) HandleUploadGroupAvatar(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	file, header, ok := readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	url, err := c.ChatService.UploadGroupAvatar(r.Context(), room.RoomID, file, extOf(header), header.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"groupAvatarUrl": url})
}

func (c *ChatController) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	var request struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	uid, err := c.ChatService.AddMemberByEmail(r.Context(), room.RoomID, request.Email)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"uid": uid})
}

func (c *ChatController) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	c.respond(w, c.ChatService.RemoveMember(r.Context(), room.RoomID, mux.Vars(r)["uid"]))
}

func (c *ChatController) HandleAddAdmin(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	c.respond(w, c.ChatService.AddAdmin(r.Context(), room.RoomID, mux.Vars(r)["uid"]))
}

func (c *ChatController) HandleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	room, ok := c.memberRoom(w, r)
	if !ok {
		return
	}
	c.respond(w, c.ChatService.RemoveAdmin(r.Context(), room.RoomID, mux.Vars(r)["uid"]))
}
