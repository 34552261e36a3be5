package models

import "time"

// UserThread maps an external user id to the assistant-service thread
// carrying that user's conversation history. Once created the mapping
// is never reassigned.
type UserThread struct {
	UserID     string    `json:"user_id"`
	ThreadID   string    `json:"thread_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}
