package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alphadeck/papertrade/internal/domain"
)

// fakeBlobReader serves canned archive objects.
type fakeBlobReader struct {
	objects map[string]string
}

func (f *fakeBlobReader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	body, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeBlobReader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, body := range f.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{
				Path:         path,
				Size:         int64(len(body)),
				LastModified: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			})
		}
	}
	return infos, nil
}

func (f *fakeBlobReader) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

func newArchiveAdminHandler(reader domain.BlobReader) *AdminHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdminHandler(nil, nil, nil, reader, logger)
}

func TestListArchivesFiltersByPrefix(t *testing.T) {
	reader := &fakeBlobReader{objects: map[string]string{
		"archive/trades/2026-06.jsonl":       `{"id":"t1"}` + "\n",
		"archive/transactions/2026-06.jsonl": `{"id":"x1"}` + "\n",
	}}
	h := newArchiveAdminHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/archives?prefix=archive/trades/", nil)
	rec := httptest.NewRecorder()
	h.ListArchives(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "archive/trades/2026-06.jsonl") {
		t.Errorf("body %q missing trade archive", body)
	}
	if strings.Contains(body, "transactions") {
		t.Errorf("body %q leaked objects outside the prefix", body)
	}
}

func TestGetArchiveStreamsObject(t *testing.T) {
	content := `{"id":"t1"}` + "\n" + `{"id":"t2"}` + "\n"
	reader := &fakeBlobReader{objects: map[string]string{
		"archive/trades/2026-06.jsonl": content,
	}}
	h := newArchiveAdminHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/archives/archive/trades/2026-06.jsonl", nil)
	req.SetPathValue("path", "archive/trades/2026-06.jsonl")
	rec := httptest.NewRecorder()
	h.GetArchive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != content {
		t.Errorf("body = %q, want the stored JSONL", rec.Body.String())
	}
}

func TestGetArchiveRejectsTraversalAndMissing(t *testing.T) {
	h := newArchiveAdminHandler(&fakeBlobReader{objects: map[string]string{}})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/archives/x", nil)
	req.SetPathValue("path", "../secrets")
	rec := httptest.NewRecorder()
	h.GetArchive(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("traversal path: status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/archives/x", nil)
	req.SetPathValue("path", "archive/trades/1999-01.jsonl")
	rec = httptest.NewRecorder()
	h.GetArchive(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing object: status = %d, want 404", rec.Code)
	}
}

func TestArchiveEndpointsReportDisabled(t *testing.T) {
	h := newArchiveAdminHandler(nil)

	rec := httptest.NewRecorder()
	h.ListArchives(rec, httptest.NewRequest(http.MethodGet, "/api/admin/archives", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("list: status = %d, want 404", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/archives/x", nil)
	req.SetPathValue("path", "archive/trades/2026-06.jsonl")
	rec = httptest.NewRecorder()
	h.GetArchive(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get: status = %d, want 404", rec.Code)
	}
}
