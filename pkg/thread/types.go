// Package thread is the client-side library for marketplace conversations.
// It keeps a local view of one message thread in sync with the server:
// optimistic sends appear instantly as temp entries, a poll loop pulls the
// confirmed state, and the two are merged without flicker or duplicates.
package thread

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType tags which marketplace context a thread belongs to.
type MessageType string

const (
	TypeJob     MessageType = "JOB"
	TypeService MessageType = "SERVICE"
)

// TempIDPrefix marks locally generated placeholder ids for messages the
// server has not acknowledged yet.
const TempIDPrefix = "tmp-"

// Attachment mirrors the server's attachment value object. Uploading is
// purely local state: true while the file transfer is still in flight.
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Uploading   bool   `json:"uploading,omitempty"`
}

// AttachmentList accepts both a single object and an array on decode.
type AttachmentList []Attachment

func (l *AttachmentList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '{' {
		var a Attachment
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		*l = AttachmentList{a}
		return nil
	}
	var many []Attachment
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// ReplyRef is a by-value snapshot of the quoted message. It is captured at
// reply time and never re-resolved, so it survives deletion of the original.
type ReplyRef struct {
	MessageID  string `json:"message_id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
}

// ReplyPreviewLen caps the quoted content carried in a reply snapshot.
const ReplyPreviewLen = 120

// truncatePreview caps s at ReplyPreviewLen bytes, backing off to the previous
// rune boundary so the snapshot stays valid UTF-8.
func truncatePreview(s string) string {
	if len(s) <= ReplyPreviewLen {
		return s
	}
	cut := ReplyPreviewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// NewReplyRef captures a snapshot from a message, truncating the content.
func NewReplyRef(m *Message) ReplyRef {
	content := truncatePreview(m.Content)
	senderName := ""
	if m.Sender != nil {
		senderName = m.Sender.Name
	}
	return ReplyRef{MessageID: m.ID, Content: content, SenderName: senderName}
}

// Peer is the public profile of a conversation counterparty.
type Peer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}

type Message struct {
	ID           string         `json:"id"`
	SenderID     string         `json:"sender_id"`
	ReceiverID   string         `json:"receiver_id"`
	Content      string         `json:"content"`
	Type         MessageType    `json:"type"`
	Read         bool           `json:"read"`
	Attachments  AttachmentList `json:"attachments,omitempty"`
	ReplyTo      *ReplyRef      `json:"reply_to,omitempty"`
	Reactions    []string       `json:"reactions,omitempty"`
	RelatedJobID *string        `json:"related_job_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Sender       *Peer          `json:"sender,omitempty"`
}

// IsTemp reports whether the message is an unacknowledged optimistic entry.
func (m *Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// LastMessage summarises the newest message of a conversation.
type LastMessage struct {
	Content       string    `json:"content"`
	HasAttachment bool      `json:"has_attachment"`
	CreatedAt     time.Time `json:"created_at"`
	FromMe        bool      `json:"from_me"`
}

// Conversation is the derived per-counterparty list entry.
type Conversation struct {
	Peer         Peer        `json:"peer"`
	Type         MessageType `json:"type"`
	LastMessage  LastMessage `json:"last_message"`
	UnreadCount  int         `json:"unread_count"`
	RelatedJobID *string     `json:"related_job_id,omitempty"`
}
