package thread

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeConvAPI struct {
	mu    sync.Mutex
	items []Conversation
	err   error
}

func (f *fakeConvAPI) Conversations(ctx context.Context, msgType MessageType) ([]Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Conversation, len(f.items))
	copy(out, f.items)
	return out, nil
}

func conv(peerID string, unread int) Conversation {
	return Conversation{Peer: Peer{ID: peerID, Name: peerID}, Type: TypeJob, UnreadCount: unread}
}

func TestConversationListRefresh(t *testing.T) {
	api := &fakeConvAPI{items: []Conversation{conv("a", 2), conv("b", 0)}}
	l := NewConversationList(api, TypeJob, nil)
	if err := l.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	items := l.Items()
	if len(items) != 2 || items[0].Peer.ID != "a" {
		t.Fatalf("unexpected items: %+v", items)
	}

	api.err = errors.New("down")
	if err := l.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := l.Items(); len(got) != 2 {
		t.Fatalf("failed refresh must keep the previous list, got %d items", len(got))
	}
}

func TestConversationListMarkOpened(t *testing.T) {
	api := &fakeConvAPI{items: []Conversation{conv("a", 3), conv("b", 1)}}
	calls := 0
	l := NewConversationList(api, TypeJob, func([]Conversation) { calls++ })
	if err := l.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	l.MarkOpened("a")
	items := l.Items()
	if items[0].UnreadCount != 0 {
		t.Fatalf("unread should reset on open: %+v", items[0])
	}
	if items[1].UnreadCount != 1 {
		t.Fatalf("other conversations must keep their counters: %+v", items[1])
	}

	before := calls
	l.MarkOpened("a")
	if calls != before {
		t.Fatal("opening an already-read conversation must not fire callbacks")
	}
}

func TestConversationListNoteSentPromotes(t *testing.T) {
	api := &fakeConvAPI{items: []Conversation{conv("a", 0), conv("b", 0)}}
	l := NewConversationList(api, TypeJob, nil)
	if err := l.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	l.NoteSent(Peer{ID: "b", Name: "b"}, "see you", false)
	items := l.Items()
	if items[0].Peer.ID != "b" {
		t.Fatalf("sent-to peer should move to front: %+v", items)
	}
	if items[0].LastMessage.Content != "see you" || !items[0].LastMessage.FromMe {
		t.Fatalf("preview not updated: %+v", items[0].LastMessage)
	}
	if len(items) != 2 {
		t.Fatalf("promotion must not duplicate entries: %d", len(items))
	}
}

func TestConversationListNoteSentNewPeer(t *testing.T) {
	api := &fakeConvAPI{}
	l := NewConversationList(api, TypeJob, nil)

	l.NoteSent(Peer{ID: "c", Name: "Carol"}, "", true)
	items := l.Items()
	if len(items) != 1 || items[0].Peer.ID != "c" {
		t.Fatalf("new peer should get a fresh entry: %+v", items)
	}
	if !items[0].LastMessage.HasAttachment {
		t.Fatal("attachment marker lost")
	}
}
