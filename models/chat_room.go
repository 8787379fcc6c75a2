package models

import "slices"

// ChatRoom is a one-to-one or group conversation.
// lastMessage* and unreadCounts are denormalized copies maintained on every send.
type ChatRoom struct {
	RoomID               string           `dynamodbav:"roomId" json:"roomId"`
	IsGroup              bool             `dynamodbav:"isGroup" json:"isGroup"`
	GroupName            string           `dynamodbav:"groupName,omitempty" json:"groupName,omitempty"`
	GroupAvatarURL       string           `dynamodbav:"groupAvatarUrl,omitempty" json:"groupAvatarUrl,omitempty"`
	MemberIDs            []string         `dynamodbav:"memberIds,stringset,omitempty" json:"memberIds"`
	AdminIDs             []string         `dynamodbav:"adminIds,stringset,omitempty" json:"adminIds"`
	LastMessage          string           `dynamodbav:"lastMessage" json:"lastMessage"`
	LastMessageSenderID  string           `dynamodbav:"lastMessageSenderId" json:"lastMessageSenderId"`
	LastMessageTimestamp int64            `dynamodbav:"lastMessageTimestamp" json:"lastMessageTimestamp"`
	UnreadCounts         map[string]int64 `dynamodbav:"unreadCounts" json:"unreadCounts"`
	CreatedAt            int64            `dynamodbav:"createdAt" json:"createdAt"`
}

// HasMember reports whether uid belongs to the room
func (r *ChatRoom) HasMember(uid string) bool {
	return slices.Contains(r.MemberIDs, uid)
}

// IsAdmin reports whether uid administers the room
func (r *ChatRoom) IsAdmin(uid string) bool {
	return slices.Contains(r.AdminIDs, uid)
}

// OtherMember returns the counterpart of uid in a one-to-one room
func (r *ChatRoom) OtherMember(uid string) string {
	for _, id := range r.MemberIDs {
		if id != uid {
			return id
		}
	}
	return ""
}
