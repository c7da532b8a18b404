package model

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestAttachmentListAcceptsSingleObject(t *testing.T) {
	var l AttachmentList
	if err := json.Unmarshal([]byte(`{"url":"/api/files/messages/a.pdf","name":"a.pdf","size":10}`), &l); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if len(l) != 1 || l[0].Name != "a.pdf" {
		t.Fatalf("expected one attachment, got %+v", l)
	}
}

func TestAttachmentListAcceptsArray(t *testing.T) {
	var l AttachmentList
	if err := json.Unmarshal([]byte(`[{"name":"a"},{"name":"b"}]`), &l); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if len(l) != 2 || l[1].Name != "b" {
		t.Fatalf("expected two attachments, got %+v", l)
	}
}

func TestAttachmentListNull(t *testing.T) {
	var l AttachmentList
	if err := json.Unmarshal([]byte(`null`), &l); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if l != nil {
		t.Fatalf("null should decode to nil, got %+v", l)
	}
}

func TestAttachmentListMarshalsNilAsEmptyArray(t *testing.T) {
	// A text-only message has no attachments; the jsonb column must still
	// receive an array, or jsonb_array_length fails on the stored scalar.
	m := Message{ID: "m1", Content: "hello"}
	got, err := json.Marshal(m.Attachments)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(got) != "[]" {
		t.Fatalf("nil attachments should marshal to [], got %s", got)
	}

	got, err = json.Marshal(AttachmentList{{Name: "a.pdf"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(got), `"name":"a.pdf"`) {
		t.Fatalf("unexpected payload: %s", got)
	}
}

func TestIsTemp(t *testing.T) {
	m := Message{ID: TempIDPrefix + "abc"}
	if !m.IsTemp() {
		t.Fatal("tmp- prefix should be temp")
	}
	m.ID = "f6d7f0aa-0001-4ab0-9d0f-000000000001"
	if m.IsTemp() {
		t.Fatal("uuid id should not be temp")
	}
}

func TestNewReplyRefTruncates(t *testing.T) {
	m := Message{
		ID:      "m1",
		Content: strings.Repeat("x", ReplyPreviewLen*3),
		Sender:  &UserPublic{Name: "Alice"},
	}
	ref := NewReplyRef(&m)
	if len(ref.Content) != ReplyPreviewLen {
		t.Fatalf("expected %d chars, got %d", ReplyPreviewLen, len(ref.Content))
	}
	if ref.MessageID != "m1" || ref.SenderName != "Alice" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestTruncatePreviewKeepsValidUTF8(t *testing.T) {
	// 61 two-byte runes is 122 bytes; a byte cut at 120 would split the
	// 61st rune in half.
	content := strings.Repeat("ф", 61)
	got := TruncatePreview(content)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated preview is not valid UTF-8: %q", got)
	}
	if len(got) > ReplyPreviewLen {
		t.Fatalf("preview longer than %d bytes: %d", ReplyPreviewLen, len(got))
	}
	if got != strings.Repeat("ф", 60) {
		t.Fatalf("unexpected preview: %q", got)
	}
}

func TestNewReplyRefWithoutSender(t *testing.T) {
	m := Message{ID: "m2", Content: "short"}
	ref := NewReplyRef(&m)
	if ref.Content != "short" || ref.SenderName != "" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}
