package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

type MessageType string

const (
	MessageTypeJob     MessageType = "JOB"
	MessageTypeService MessageType = "SERVICE"
)

// TempIDPrefix marks client-generated placeholder ids for messages not yet
// acknowledged by the server.
const TempIDPrefix = "tmp-"

// Attachment is a value object owned by exactly one message.
// Uploading is transient client state and never persisted.
type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Uploading   bool   `json:"uploading,omitempty"`
}

// AttachmentList accepts both a single attachment object and an array on decode.
// Some clients send one object when there is a single attachment; internally it
// is always a list, possibly empty.
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

// MarshalJSON emits a nil list as []. The attachments jsonb column must always
// hold an array, never a json null.
func (l AttachmentList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Attachment(l))
}

// ReplyRef is a by-value snapshot of the message being replied to.
// It does not follow later edits or deletion of the original.
type ReplyRef struct {
	MessageID  string `json:"message_id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
}

// ReplyPreviewLen is the maximum length of the quoted content in a reply snapshot.
const ReplyPreviewLen = 120

// TruncatePreview caps s at ReplyPreviewLen bytes, backing off to the previous
// rune boundary so the result stays valid UTF-8.
func TruncatePreview(s string) string {
	if len(s) <= ReplyPreviewLen {
		return s
	}
	cut := ReplyPreviewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// NewReplyRef captures a reply snapshot from a message, truncating the content.
func NewReplyRef(m *Message) ReplyRef {
	content := TruncatePreview(m.Content)
	senderName := ""
	if m.Sender != nil {
		senderName = m.Sender.Name
	}
	return ReplyRef{MessageID: m.ID, Content: content, SenderName: senderName}
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
	Sender       *UserPublic    `json:"sender,omitempty"`
}

// IsTemp reports whether the message carries a client-generated placeholder id.
func (m *Message) IsTemp() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}
