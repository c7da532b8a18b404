package thread

import (
	"context"
	"sync"
	"time"
)

// ConversationAPI is the subset of the client the list manager needs.
type ConversationAPI interface {
	Conversations(ctx context.Context, msgType MessageType) ([]Conversation, error)
}

// ConversationList maintains the conversation sidebar for one context tab.
// Server refreshes replace the list wholesale; local hints (opening a thread,
// sending a message) adjust it optimistically until the next refresh.
type ConversationList struct {
	api      ConversationAPI
	msgType  MessageType
	onChange func([]Conversation)

	mu    sync.Mutex
	items []Conversation
}

func NewConversationList(api ConversationAPI, msgType MessageType, onChange func([]Conversation)) *ConversationList {
	return &ConversationList{api: api, msgType: msgType, onChange: onChange}
}

// Items returns a copy of the current list.
func (l *ConversationList) Items() []Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *ConversationList) snapshotLocked() []Conversation {
	out := make([]Conversation, len(l.items))
	copy(out, l.items)
	return out
}

func (l *ConversationList) notify(snapshot []Conversation) {
	if l.onChange != nil {
		l.onChange(snapshot)
	}
}

// Refresh replaces the list with the server's derived view.
func (l *ConversationList) Refresh(ctx context.Context) error {
	items, err := l.api.Conversations(ctx, l.msgType)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.items = items
	snapshot := l.snapshotLocked()
	l.mu.Unlock()
	l.notify(snapshot)
	return nil
}

// MarkOpened zeroes the unread counter for a peer. The server resets it as a
// side effect of fetching the thread; this keeps the sidebar badge in step
// without waiting for the next list refresh.
func (l *ConversationList) MarkOpened(peerID string) {
	l.mu.Lock()
	changed := false
	for i := range l.items {
		if l.items[i].Peer.ID == peerID && l.items[i].UnreadCount != 0 {
			l.items[i].UnreadCount = 0
			changed = true
		}
	}
	var snapshot []Conversation
	if changed {
		snapshot = l.snapshotLocked()
	}
	l.mu.Unlock()
	if changed {
		l.notify(snapshot)
	}
}

// NoteSent moves a peer's conversation to the front after a local send and
// updates its preview. Unknown peers get a fresh entry; the server list will
// fill in profile details on the next refresh.
func (l *ConversationList) NoteSent(peer Peer, content string, hasAttachment bool) {
	now := time.Now().UTC()
	last := LastMessage{
		Content:       content,
		HasAttachment: hasAttachment,
		CreatedAt:     now,
		FromMe:        true,
	}

	l.mu.Lock()
	idx := -1
	for i := range l.items {
		if l.items[i].Peer.ID == peer.ID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		conv := l.items[idx]
		conv.LastMessage = last
		l.items = append(l.items[:idx], l.items[idx+1:]...)
		l.items = append([]Conversation{conv}, l.items...)
	} else {
		l.items = append([]Conversation{{
			Peer:        peer,
			Type:        l.msgType,
			LastMessage: last,
		}}, l.items...)
	}
	snapshot := l.snapshotLocked()
	l.mu.Unlock()
	l.notify(snapshot)
}
