package thread

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// API is the server surface the reconciler needs. *Client implements it.
type API interface {
	Thread(ctx context.Context, peerID string, msgType MessageType) ([]Message, []byte, error)
	SendMessage(ctx context.Context, req SendRequest) (*Message, error)
	React(ctx context.Context, messageID, emoji string) ([]string, error)
	DeleteMessage(ctx context.Context, peerID, messageID string) error
	Upload(ctx context.Context, f File) (*Attachment, error)
}

// Options tune a Reconciler. Zero values fall back to defaults.
type Options struct {
	// PollInterval between background refreshes; default 5s.
	PollInterval time.Duration
	// OnChange receives a snapshot after every visible state change.
	// Called from the goroutine that caused the change, never under the lock.
	OnChange func(messages []Message)
	// OnError receives background refresh failures from Run.
	OnError func(err error)
}

// Reconciler keeps one conversation thread consistent between optimistic
// local sends and the polled server state.
//
// Merge rule: the server list is taken in full, then local temp messages
// that have not been confirmed yet are appended after it. A refresh whose
// confirmed payload is byte-identical to the previous one changes nothing
// and fires no callbacks.
type Reconciler struct {
	api     API
	selfID  string
	peerID  string
	msgType MessageType
	opts    Options

	mu            sync.Mutex
	messages      []Message
	lastConfirmed []byte
}

func NewReconciler(api API, selfID, peerID string, msgType MessageType, opts Options) *Reconciler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Reconciler{
		api:     api,
		selfID:  selfID,
		peerID:  peerID,
		msgType: msgType,
		opts:    opts,
	}
}

// Messages returns a copy of the current merged view.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) snapshotLocked() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Reconciler) notify(snapshot []Message) {
	if r.opts.OnChange != nil {
		r.opts.OnChange(snapshot)
	}
}

// Run polls the thread until ctx is cancelled. The first refresh happens
// immediately.
func (r *Reconciler) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil && r.opts.OnError != nil {
		r.opts.OnError(err)
	}
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil && r.opts.OnError != nil {
				r.opts.OnError(err)
			}
		}
	}
}

// Refresh pulls the confirmed list and merges it with surviving temps.
func (r *Reconciler) Refresh(ctx context.Context) error {
	server, raw, err := r.api.Thread(ctx, r.peerID, r.msgType)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if bytes.Equal(raw, r.lastConfirmed) {
		// Nothing changed server-side; keep the current view untouched.
		r.mu.Unlock()
		return nil
	}
	merged := make([]Message, 0, len(server)+4)
	merged = append(merged, server...)
	for i := range r.messages {
		if r.messages[i].IsTemp() {
			merged = append(merged, r.messages[i])
		}
	}
	r.messages = merged
	r.lastConfirmed = append([]byte(nil), raw...)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.notify(snapshot)
	return nil
}

// SendInput describes one outgoing message.
type SendInput struct {
	Content      string
	Files        []File
	ReplyTo      *ReplyRef
	RelatedJobID *string
}

// Send appends an optimistic temp message, uploads attachments one by one
// with in-place progress, posts the message and swaps the temp entry for the
// server's canonical copy at the same position. Any failure removes the temp
// entry entirely; nothing half-sent is left behind.
func (r *Reconciler) Send(ctx context.Context, in SendInput) (*Message, error) {
	tempID := TempIDPrefix + uuid.New().String()

	attachments := make(AttachmentList, len(in.Files))
	for i, f := range in.Files {
		attachments[i] = Attachment{Name: f.Name, Uploading: true}
	}
	// The caller keeps its ReplyRef; truncate a private copy.
	replyTo := in.ReplyTo
	if replyTo != nil {
		ref := *replyTo
		ref.Content = truncatePreview(ref.Content)
		replyTo = &ref
	}

	temp := Message{
		ID:           tempID,
		SenderID:     r.selfID,
		ReceiverID:   r.peerID,
		Content:      in.Content,
		Type:         r.msgType,
		Attachments:  attachments,
		ReplyTo:      replyTo,
		RelatedJobID: in.RelatedJobID,
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	r.messages = append(r.messages, temp)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)

	uploaded := make(AttachmentList, 0, len(in.Files))
	for i, f := range in.Files {
		att, err := r.api.Upload(ctx, f)
		if err != nil {
			r.removeTemp(tempID)
			return nil, err
		}
		uploaded = append(uploaded, *att)
		r.updateTempAttachment(tempID, i, *att)
	}

	confirmed, err := r.api.SendMessage(ctx, SendRequest{
		ReceiverID:   r.peerID,
		Content:      in.Content,
		Type:         r.msgType,
		Attachments:  uploaded,
		ReplyTo:      replyTo,
		RelatedJobID: in.RelatedJobID,
	})
	if err != nil {
		r.removeTemp(tempID)
		return nil, err
	}

	r.mu.Lock()
	idx := r.indexOfLocked(tempID)
	if idx >= 0 {
		if r.indexOfLocked(confirmed.ID) >= 0 {
			// A poll already delivered the confirmed copy; drop the temp
			// instead of replacing it, or it would appear twice.
			r.messages = append(r.messages[:idx], r.messages[idx+1:]...)
		} else {
			r.messages[idx] = *confirmed
		}
	}
	snapshot = r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)

	return confirmed, nil
}

func (r *Reconciler) indexOfLocked(id string) int {
	for i := range r.messages {
		if r.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) removeTemp(tempID string) {
	r.mu.Lock()
	idx := r.indexOfLocked(tempID)
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.messages = append(r.messages[:idx], r.messages[idx+1:]...)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)
}

func (r *Reconciler) updateTempAttachment(tempID string, attIdx int, att Attachment) {
	r.mu.Lock()
	idx := r.indexOfLocked(tempID)
	if idx < 0 || attIdx >= len(r.messages[idx].Attachments) {
		r.mu.Unlock()
		return
	}
	atts := make(AttachmentList, len(r.messages[idx].Attachments))
	copy(atts, r.messages[idx].Attachments)
	atts[attIdx] = att
	r.messages[idx].Attachments = atts
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)
}

// React applies the emoji locally first, then replaces the reaction list
// wholesale with the server's canonical answer. On failure the local
// append is rolled back.
func (r *Reconciler) React(ctx context.Context, messageID, emoji string) error {
	r.mu.Lock()
	idx := r.indexOfLocked(messageID)
	if idx < 0 {
		r.mu.Unlock()
		return ErrMessageNotFound
	}
	prev := r.messages[idx].Reactions
	next := make([]string, len(prev), len(prev)+1)
	copy(next, prev)
	r.messages[idx].Reactions = append(next, emoji)
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)

	canonical, err := r.api.React(ctx, messageID, emoji)

	r.mu.Lock()
	idx = r.indexOfLocked(messageID)
	if idx >= 0 {
		if err != nil {
			r.messages[idx].Reactions = prev
		} else {
			r.messages[idx].Reactions = canonical
		}
		snapshot = r.snapshotLocked()
	} else {
		snapshot = nil
	}
	r.mu.Unlock()
	if snapshot != nil {
		r.notify(snapshot)
	}
	return err
}

// Delete removes a message server-first: the local entry disappears only
// after the server confirms. Temp messages are dropped locally right away,
// the server has never seen them.
func (r *Reconciler) Delete(ctx context.Context, messageID string) error {
	r.mu.Lock()
	idx := r.indexOfLocked(messageID)
	if idx < 0 {
		r.mu.Unlock()
		return ErrMessageNotFound
	}
	isTemp := r.messages[idx].IsTemp()
	r.mu.Unlock()

	if isTemp {
		r.removeTemp(messageID)
		return nil
	}

	if err := r.api.DeleteMessage(ctx, r.peerID, messageID); err != nil {
		return err
	}

	r.mu.Lock()
	idx = r.indexOfLocked(messageID)
	if idx >= 0 {
		r.messages = append(r.messages[:idx], r.messages[idx+1:]...)
	}
	// Forget the cached payload: the next poll must re-apply server state
	// even if it happens to serialize identically.
	r.lastConfirmed = nil
	snapshot := r.snapshotLocked()
	r.mu.Unlock()
	r.notify(snapshot)
	return nil
}

// ReplyTo builds a by-value reply snapshot for a message currently in view.
func (r *Reconciler) ReplyTo(messageID string) (*ReplyRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexOfLocked(messageID)
	if idx < 0 {
		return nil, false
	}
	ref := NewReplyRef(&r.messages[idx])
	return &ref, true
}
