package fileserver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return New(t.TempDir(), 5<<20)
}

func multipartBody(t *testing.T, filename, folder string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if folder != "" {
		mw.WriteField("folder", folder)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAndServeRoundTrip(t *testing.T) {
	s := newTestService(t)
	content := []byte("%PDF-1.4 test document")
	body, ct := multipartBody(t, "report.pdf", "messages", content)

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.ContentType != "file" || resp.FileName != "report.pdf" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.URL, "/api/files/messages/") {
		t.Fatalf("url should carry the folder: %s", resp.URL)
	}

	// Раздача: содержимое совпадает после распаковки.
	filename := resp.URL[strings.LastIndex(resp.URL, "/")+1:]
	serveReq := httptest.NewRequest(http.MethodGet, resp.URL, nil)
	serveRec := httptest.NewRecorder()
	s.Serve(serveRec, serveReq, "messages", filename)
	if serveRec.Code != http.StatusOK {
		t.Fatalf("serve status %d", serveRec.Code)
	}
	got, _ := io.ReadAll(serveRec.Body)
	if !bytes.Equal(got, content) {
		t.Fatalf("served content differs: %q", got)
	}
	if ct := serveRec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestUploadBlockedExtension(t *testing.T) {
	s := newTestService(t)
	body, ct := multipartBody(t, "evil.exe", "messages", []byte("MZ..."))

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not allowed") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestUploadMagicMismatch(t *testing.T) {
	s := newTestService(t)
	// .png с не-PNG содержимым должен быть отвергнут
	body, ct := multipartBody(t, "fake.png", "", []byte("definitely not a png"))

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadBase64(t *testing.T) {
	s := newTestService(t)
	content := []byte("%PDF-1.4 from base64")
	payload := map[string]string{
		"name":   "doc.pdf",
		"folder": "products",
		"data":   "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(content),
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.FileSize != int64(len(content)) {
		t.Fatalf("file size = %d, want %d", resp.FileSize, len(content))
	}
	if !strings.HasPrefix(resp.URL, "/api/files/products/") {
		t.Fatalf("url = %s", resp.URL)
	}
}

func TestUploadFolderSanitized(t *testing.T) {
	s := newTestService(t)
	body, ct := multipartBody(t, "a.txt", "../../etc", []byte("hello"))

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.Upload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var resp UploadResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	// "../../etc" теряет недопустимые символы и превращается в "etc"
	if !strings.HasPrefix(resp.URL, "/api/files/etc/") {
		t.Fatalf("folder not sanitized: %s", resp.URL)
	}
}

func TestServeMissingFile(t *testing.T) {
	s := newTestService(t)
	req := httptest.NewRequest(http.MethodGet, "/api/files/messages/nope.pdf", nil)
	rec := httptest.NewRecorder()
	s.Serve(rec, req, "messages", "nope.pdf")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSafeFolder(t *testing.T) {
	cases := map[string]string{
		"messages":  "messages",
		"../../etc": "etc",
		"":          "misc",
		"AVATARS":   "avatars",
		"a b/c":     "abc",
	}
	for in, want := range cases {
		if got := safeFolder(in); got != want {
			t.Errorf("safeFolder(%q) = %q, want %q", in, got, want)
		}
	}
}
