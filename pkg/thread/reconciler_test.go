package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

type fakeAPI struct {
	mu     sync.Mutex
	server []Message
	nextID int

	uploadErr error
	sendErr   error
	reactErr  error
	deleteErr error

	// afterPersist runs after SendMessage stored the message but before it
	// returns, to interleave polls with an in-flight send.
	afterPersist func()
}

func (f *fakeAPI) Thread(ctx context.Context, peerID string, msgType MessageType) ([]Message, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.server))
	copy(out, f.server)
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, nil, err
	}
	return out, raw, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, req SendRequest) (*Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.mu.Lock()
	f.nextID++
	m := Message{
		ID:          fmt.Sprintf("srv-%d", f.nextID),
		SenderID:    "me",
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		Type:        req.Type,
		Attachments: req.Attachments,
		ReplyTo:     req.ReplyTo,
		CreatedAt:   time.Now().UTC(),
	}
	f.server = append(f.server, m)
	hook := f.afterPersist
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &m, nil
}

func (f *fakeAPI) React(ctx context.Context, messageID, emoji string) ([]string, error) {
	if f.reactErr != nil {
		return nil, f.reactErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.server {
		if f.server[i].ID == messageID {
			f.server[i].Reactions = append(f.server[i].Reactions, emoji)
			out := make([]string, len(f.server[i].Reactions))
			copy(out, f.server[i].Reactions)
			return out, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, peerID, messageID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.server {
		if f.server[i].ID == messageID {
			f.server = append(f.server[:i], f.server[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeAPI) Upload(ctx context.Context, file File) (*Attachment, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &Attachment{
		URL:         "/api/files/messages/" + file.Name,
		Name:        file.Name,
		ContentType: "file",
		Size:        42,
	}, nil
}

func (f *fakeAPI) seed(contents ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range contents {
		f.nextID++
		f.server = append(f.server, Message{
			ID:        fmt.Sprintf("srv-%d", f.nextID),
			SenderID:  "peer",
			Content:   c,
			Type:      TypeJob,
			CreatedAt: time.Now().UTC(),
		})
	}
}

func newTestReconciler(api *fakeAPI, onChange func([]Message)) *Reconciler {
	return NewReconciler(api, "me", "peer", TypeJob, Options{OnChange: onChange})
}

func ids(messages []Message) []string {
	out := make([]string, len(messages))
	for i := range messages {
		out[i] = messages[i].ID
	}
	return out
}

func TestSendAppendsTempImmediately(t *testing.T) {
	api := &fakeAPI{}
	var first []Message
	var once sync.Once
	rec := newTestReconciler(api, func(m []Message) {
		once.Do(func() { first = m })
	})

	if _, err := rec.Send(context.Background(), SendInput{Content: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 message in first snapshot, got %d", len(first))
	}
	if !first[0].IsTemp() {
		t.Fatalf("first snapshot should contain a temp entry, got id %q", first[0].ID)
	}
	if first[0].Content != "hi" || first[0].SenderID != "me" {
		t.Fatalf("temp message content/sender wrong: %+v", first[0])
	}
}

func TestSendReplacesTempInPlace(t *testing.T) {
	api := &fakeAPI{}
	api.seed("a", "b")
	rec := newTestReconciler(api, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	confirmed, err := rec.Send(context.Background(), SendInput{Content: "new"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	got := rec.Messages()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %v", ids(got))
	}
	if got[2].ID != confirmed.ID {
		t.Fatalf("confirmed message should sit at the temp's index, got %v", ids(got))
	}
	for _, m := range got {
		if m.IsTemp() {
			t.Fatalf("temp entry survived confirmation: %v", ids(got))
		}
	}
}

func TestRefreshKeepsPendingTempsAppended(t *testing.T) {
	api := &fakeAPI{}
	api.seed("a")
	rec := newTestReconciler(api, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// Inject a pending temp by hand: a send whose POST has not finished.
	rec.mu.Lock()
	rec.messages = append(rec.messages, Message{ID: TempIDPrefix + "x", SenderID: "me", Content: "pending"})
	rec.mu.Unlock()

	api.seed("b")
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got := rec.Messages()
	if len(got) != 3 {
		t.Fatalf("expected server(2) + temp(1), got %v", ids(got))
	}
	if got[0].ID != "srv-1" || got[1].ID != "srv-2" {
		t.Fatalf("server order not preserved: %v", ids(got))
	}
	if !got[2].IsTemp() {
		t.Fatalf("temp should stay appended after server list: %v", ids(got))
	}
}

func TestRefreshIdenticalPayloadIsSilent(t *testing.T) {
	api := &fakeAPI{}
	api.seed("a", "b")
	calls := 0
	rec := newTestReconciler(api, func([]Message) { calls++ })

	for i := 0; i < 4; i++ {
		if err := rec.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	if calls != 1 {
		t.Fatalf("identical refreshes must not fire callbacks, got %d calls", calls)
	}
}

func TestInterleavedRefreshDoesNotDuplicate(t *testing.T) {
	api := &fakeAPI{}
	rec := newTestReconciler(api, nil)

	// A poll lands after the server persisted the message but before the
	// send call returned: the confirmed copy arrives via refresh while the
	// temp entry is still in the list.
	api.afterPersist = func() {
		if err := rec.Refresh(context.Background()); err != nil {
			t.Errorf("interleaved refresh: %v", err)
		}
	}

	confirmed, err := rec.Send(context.Background(), SendInput{Content: "once"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	got := rec.Messages()
	count := 0
	for _, m := range got {
		if m.ID == confirmed.ID {
			count++
		}
		if m.IsTemp() {
			t.Fatalf("temp entry left behind: %v", ids(got))
		}
	}
	if count != 1 {
		t.Fatalf("message appears %d times, want exactly once: %v", count, ids(got))
	}
}

func TestSendUploadsSequentiallyWithProgress(t *testing.T) {
	api := &fakeAPI{}
	var snapshots [][]Message
	rec := newTestReconciler(api, func(m []Message) {
		snapshots = append(snapshots, m)
	})

	files := []File{
		{Name: "one.pdf", Reader: strings.NewReader("1")},
		{Name: "two.pdf", Reader: strings.NewReader("2")},
	}
	if _, err := rec.Send(context.Background(), SendInput{Files: files}); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Snapshot 0: temp appended, both attachments uploading.
	first := snapshots[0]
	if len(first) != 1 || len(first[0].Attachments) != 2 {
		t.Fatalf("unexpected first snapshot: %+v", first)
	}
	if !first[0].Attachments[0].Uploading || !first[0].Attachments[1].Uploading {
		t.Fatalf("both attachments should start uploading")
	}

	// Snapshot 1: first upload done in place, second still in flight.
	second := snapshots[1]
	if second[0].Attachments[0].Uploading || second[0].Attachments[0].URL == "" {
		t.Fatalf("first attachment should be done after snapshot 1: %+v", second[0].Attachments)
	}
	if !second[0].Attachments[1].Uploading {
		t.Fatalf("second attachment should still be uploading in snapshot 1")
	}

	final := rec.Messages()
	for _, a := range final[0].Attachments {
		if a.Uploading || a.URL == "" {
			t.Fatalf("final attachments must be uploaded: %+v", final[0].Attachments)
		}
	}
}

func TestSendUploadFailureRemovesTemp(t *testing.T) {
	api := &fakeAPI{uploadErr: errors.New("disk full")}
	rec := newTestReconciler(api, nil)

	_, err := rec.Send(context.Background(), SendInput{
		Files: []File{{Name: "big.bin", Reader: strings.NewReader("x")}},
	})
	if err == nil {
		t.Fatal("expected upload error")
	}
	if got := rec.Messages(); len(got) != 0 {
		t.Fatalf("failed send must leave nothing behind, got %v", ids(got))
	}
}

func TestSendPostFailureRemovesTemp(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("boom")}
	api.seed("a")
	rec := newTestReconciler(api, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if _, err := rec.Send(context.Background(), SendInput{Content: "x"}); err == nil {
		t.Fatal("expected send error")
	}
	got := rec.Messages()
	if len(got) != 1 || got[0].ID != "srv-1" {
		t.Fatalf("thread should be back to confirmed state, got %v", ids(got))
	}
}

func TestReactOptimisticThenCanonical(t *testing.T) {
	api := &fakeAPI{}
	api.seed("a")
	api.mu.Lock()
	api.server[0].Reactions = []string{"👍"}
	api.mu.Unlock()

	var snapshots [][]Message
	rec := newTestReconciler(api, func(m []Message) { snapshots = append(snapshots, m) })
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := rec.React(context.Background(), "srv-1", "🔥"); err != nil {
		t.Fatalf("react: %v", err)
	}
	// The optimistic snapshot already shows the appended emoji.
	optimistic := snapshots[1][0].Reactions
	if len(optimistic) != 2 || optimistic[1] != "🔥" {
		t.Fatalf("optimistic reactions wrong: %v", optimistic)
	}
	final := rec.Messages()[0].Reactions
	if len(final) != 2 || final[0] != "👍" || final[1] != "🔥" {
		t.Fatalf("canonical reactions wrong: %v", final)
	}
}

func TestReactRollsBackOnError(t *testing.T) {
	api := &fakeAPI{reactErr: errors.New("nope")}
	api.seed("a")
	rec := newTestReconciler(api, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := rec.React(context.Background(), "srv-1", "🔥"); err == nil {
		t.Fatal("expected react error")
	}
	if got := rec.Messages()[0].Reactions; len(got) != 0 {
		t.Fatalf("failed react must roll back, got %v", got)
	}
}

func TestDeleteWaitsForServer(t *testing.T) {
	api := &fakeAPI{deleteErr: errors.New("unavailable")}
	api.seed("a", "b")
	rec := newTestReconciler(api, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := rec.Delete(context.Background(), "srv-1"); err == nil {
		t.Fatal("expected delete error")
	}
	if got := rec.Messages(); len(got) != 2 {
		t.Fatalf("message must stay until server confirms, got %v", ids(got))
	}

	api.deleteErr = nil
	if err := rec.Delete(context.Background(), "srv-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := rec.Messages()
	if len(got) != 1 || got[0].ID != "srv-2" {
		t.Fatalf("expected only srv-2 left, got %v", ids(got))
	}
}

func TestDeleteTempIsLocalOnly(t *testing.T) {
	api := &fakeAPI{deleteErr: errors.New("server must not be called")}
	rec := newTestReconciler(api, nil)
	rec.mu.Lock()
	rec.messages = append(rec.messages, Message{ID: TempIDPrefix + "x", SenderID: "me"})
	rec.mu.Unlock()

	if err := rec.Delete(context.Background(), TempIDPrefix+"x"); err != nil {
		t.Fatalf("deleting a temp must not hit the server: %v", err)
	}
	if got := rec.Messages(); len(got) != 0 {
		t.Fatalf("temp should be gone, got %v", ids(got))
	}
}

func TestReplySnapshotSurvivesOriginalDeletion(t *testing.T) {
	api := &fakeAPI{}
	api.seed("original text")
	rec := newTestReconciler(api, nil)
	if err := rec.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	ref, ok := rec.ReplyTo("srv-1")
	if !ok {
		t.Fatal("reply target not found")
	}
	if ref.Content != "original text" {
		t.Fatalf("snapshot content wrong: %q", ref.Content)
	}

	if err := rec.Delete(context.Background(), "srv-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// The snapshot is by value: deleting the original changes nothing.
	if ref.MessageID != "srv-1" || ref.Content != "original text" {
		t.Fatalf("snapshot mutated after deletion: %+v", ref)
	}

	confirmed, err := rec.Send(context.Background(), SendInput{Content: "re", ReplyTo: ref})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if confirmed.ReplyTo == nil || confirmed.ReplyTo.Content != "original text" {
		t.Fatalf("reply snapshot not carried: %+v", confirmed.ReplyTo)
	}
}

func TestReplySnapshotTruncatesContent(t *testing.T) {
	long := strings.Repeat("a", 500)
	m := Message{ID: "srv-9", Content: long, Sender: &Peer{Name: "Bob"}}
	ref := NewReplyRef(&m)
	if len(ref.Content) != ReplyPreviewLen {
		t.Fatalf("expected %d chars, got %d", ReplyPreviewLen, len(ref.Content))
	}
	if ref.SenderName != "Bob" {
		t.Fatalf("sender name wrong: %q", ref.SenderName)
	}
}

func TestReplySnapshotTruncatesOnRuneBoundary(t *testing.T) {
	// 61 two-byte runes is 122 bytes; a blind byte cut at 120 would split
	// the last rune.
	m := Message{ID: "srv-9", Content: strings.Repeat("ф", 61)}
	ref := NewReplyRef(&m)
	if !utf8.ValidString(ref.Content) {
		t.Fatalf("snapshot is not valid UTF-8: %q", ref.Content)
	}
	if ref.Content != strings.Repeat("ф", 60) {
		t.Fatalf("unexpected preview: %q", ref.Content)
	}
}

func TestSendDoesNotMutateCallerReply(t *testing.T) {
	api := &fakeAPI{}
	rec := newTestReconciler(api, nil)

	ref := &ReplyRef{MessageID: "srv-1", Content: strings.Repeat("b", 500), SenderName: "Bob"}
	confirmed, err := rec.Send(context.Background(), SendInput{Content: "re", ReplyTo: ref})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ref.Content) != 500 {
		t.Fatalf("caller's snapshot was truncated to %d bytes", len(ref.Content))
	}
	if confirmed.ReplyTo == nil || len(confirmed.ReplyTo.Content) != ReplyPreviewLen {
		t.Fatalf("sent reply not truncated: %+v", confirmed.ReplyTo)
	}
}

func TestRunPollsUntilCancelled(t *testing.T) {
	api := &fakeAPI{}
	api.seed("a")
	var mu sync.Mutex
	calls := 0
	rec := NewReconciler(api, "me", "peer", TypeJob, Options{
		PollInterval: 5 * time.Millisecond,
		OnChange: func([]Message) {
			mu.Lock()
			calls++
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poll loop never refreshed")
		case <-time.After(time.Millisecond):
		}
	}
	api.seed("b")
	deadline = time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poll loop did not pick up server change")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
