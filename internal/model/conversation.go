package model

import "time"

// LastMessage is the summary of the most recent message in a conversation.
// HasAttachment lets the list render an attachment marker when content is empty.
type LastMessage struct {
	Content       string    `json:"content"`
	HasAttachment bool      `json:"has_attachment"`
	CreatedAt     time.Time `json:"created_at"`
	FromMe        bool      `json:"from_me"`
}

// Conversation is a derived per-counterparty view, not a stored entity.
// Unique by peer id within a list, ordered by last-message recency.
type Conversation struct {
	Peer         UserPublic  `json:"peer"`
	Type         MessageType `json:"type"`
	LastMessage  LastMessage `json:"last_message"`
	UnreadCount  int         `json:"unread_count"`
	RelatedJobID *string     `json:"related_job_id,omitempty"`
}
