package models

// ChatMessage is an immutable entry of a room's message sub-collection.
// Timestamp is the sort key; type-specific fields are only set for their type.
type ChatMessage struct {
	MessageID  string `dynamodbav:"messageId" json:"messageId"`
	RoomID     string `dynamodbav:"roomId" json:"roomId"`
	SenderID   string `dynamodbav:"senderId" json:"senderId"`
	Timestamp  int64  `dynamodbav:"timestamp" json:"timestamp"`
	Type       string `dynamodbav:"type" json:"type"`
	Body       string `dynamodbav:"body" json:"body"`
	FileURL    string `dynamodbav:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	FileName   string `dynamodbav:"fileName,omitempty" json:"fileName,omitempty"`
	FileSize   int64  `dynamodbav:"fileSize,omitempty" json:"fileSize,omitempty"`
	CallID     string `dynamodbav:"callId,omitempty" json:"callId,omitempty"`
	CallType   string `dynamodbav:"callType,omitempty" json:"callType,omitempty"`
	CallStatus string `dynamodbav:"callStatus,omitempty" json:"callStatus,omitempty"`
}
