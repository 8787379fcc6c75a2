package models

// User is a registered chat user. uid is the identifier issued by the auth service.
type User struct {
	UID       string `dynamodbav:"uid" json:"uid"`
	Name      string `dynamodbav:"name" json:"name"`
	Email     string `dynamodbav:"email" json:"email"`
	Phone     string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Birthday  string `dynamodbav:"birthday,omitempty" json:"birthday,omitempty"`
	AvatarURL string `dynamodbav:"avatarUrl" json:"avatarUrl"`
	IsOnline  bool   `dynamodbav:"isOnline" json:"isOnline"`
}

// Credential holds the password hash of a user, keyed by uid
type Credential struct {
	UID          string `dynamodbav:"uid"`
	Email        string `dynamodbav:"email"`
	PasswordHash string `dynamodbav:"passwordHash"`
	CreatedAt    int64  `dynamodbav:"createdAt"`
}

// Session is a signed-in device session
type Session struct {
	SessionID string `dynamodbav:"sessionId" json:"sessionId"`
	UID       string `dynamodbav:"uid" json:"uid"`
	CreatedAt int64  `dynamodbav:"createdAt" json:"createdAt"`
	ExpiresAt int64  `dynamodbav:"expiresAt" json:"expiresAt"`
}
