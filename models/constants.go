package models

// ✅ Collection paths in the document store
const (
	UsersCollection       = "users"
	ChatRoomsCollection   = "chatrooms"
	CredentialsCollection = "credentials"
	SessionsCollection    = "sessions"

	// Sub-collections under chatrooms/{roomId}
	MessagesSubCollection = "chats"
	CallsSubCollection    = "calls"
)

// ✅ Message Types (text, image, video, audio, file, call)
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
	MessageTypeCall  = "call"
)

// ✅ Call Types
const (
	CallTypeVoice = "voice"
	CallTypeVideo = "video"
)

// ✅ Call Statuses
const (
	CallStatusOngoing = "ongoing"
	CallStatusEnded   = "ended"
	CallStatusMissed  = "missed"
)

// Placeholder bodies stored with non-text messages
const (
	BodyImage = "[Image]"
	BodyVideo = "[Video]"
	BodyAudio = "[Audio]"
	BodyCall  = "[Call]"
)

// MessagesPath returns the message sub-collection path of a room
func MessagesPath(roomID string) string {
	return ChatRoomsCollection + "/" + roomID + "/" + MessagesSubCollection
}

// CallsPath returns the call-log sub-collection path of a room
func CallsPath(roomID string) string {
	return ChatRoomsCollection + "/" + roomID + "/" + CallsSubCollection
}

// IsValidMessageType reports whether t is one of the known message types
func IsValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile, MessageTypeCall:
		return true
	}
	return false
}

// IsValidCallType reports whether t is voice or video
func IsValidCallType(t string) bool {
	return t == CallTypeVoice || t == CallTypeVideo
}

// FileBody is the placeholder body of a file message
func FileBody(fileName string) string {
	return "[File " + fileName + "]"
}
