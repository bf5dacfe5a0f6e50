package blobstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
)

var bg = context.Background()

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"prescription.pdf", true},
		{"patient_1/record_2_20240101.pdf", true},
		{"", false},
		{"/etc/passwd", false},
		{"../secret", false},
		{"a/../../b", false},
		{"a//b", false},
		{"a/./b", false},
		{`a\b`, false},
		{"dir/", false},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if tt.valid && err != nil {
			t.Errorf("ValidateName(%q) unexpected error %v", tt.name, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) expected ErrInvalidName, got %v", tt.name, err)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.pdf":   "application/pdf",
		"a.JPG":   "image/jpeg",
		"a.png":   "image/png",
		"a.bin99": "application/octet-stream",
		"noext":   "application/octet-stream",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

// exerciseStore runs the same contract against every implementation.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	name := "patient_1/record_1.pdf"

	info, err := store.Save(bg, name, []byte("%PDF-1.4 test"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Size != 13 {
		t.Errorf("expected size 13, got %d", info.Size)
	}
	if info.ContentType != "application/pdf" {
		t.Errorf("expected application/pdf, got %s", info.ContentType)
	}
	if info.SHA256 == "" {
		t.Error("expected sha256 to be set")
	}

	rc, info, err := store.Open(bg, name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4 test" {
		t.Errorf("unexpected content %q", data)
	}
	if info.Name != name {
		t.Errorf("expected name %q, got %q", name, info.Name)
	}

	if _, err := store.Stat(bg, name); err != nil {
		t.Errorf("Stat: %v", err)
	}

	// overwrite keeps a single blob with the new content
	if _, err := store.Save(bg, name, []byte("v2")); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	st, err := store.Stat(bg, name)
	if err != nil || st.Size != 2 {
		t.Errorf("expected overwritten size 2, got %+v err=%v", st, err)
	}

	if err := store.Delete(bg, name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(bg, name); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Open(bg, name); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after delete: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Stat(bg, "missing.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat missing: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Save(bg, "../escape.pdf", []byte("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	exerciseStore(t, store)
}

func TestLocalStore_WritesUnderRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(bg, "patient_9/doc.txt", []byte("hi")); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "patient_9", "doc.txt"))
	if err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("unexpected content %q", data)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "patient_9"))
	if len(entries) != 1 {
		t.Errorf("expected temp file to be renamed away, found %d entries", len(entries))
	}
}

func TestMemoryStore_CopiesInput(t *testing.T) {
	store := NewMemoryStore()
	data := []byte("abc")
	if _, err := store.Save(bg, "a.txt", data); err != nil {
		t.Fatal(err)
	}
	data[0] = 'z'
	rc, _, _ := store.Open(bg, "a.txt")
	got, _ := io.ReadAll(rc)
	if string(got) != "abc" {
		t.Errorf("store must not alias caller buffer, got %q", got)
	}
}

func serveFile(store Store, name string) *httptest.ResponseRecorder {
	e := echo.New()
	RegisterRoutes(e, store)
	req := httptest.NewRequest(http.MethodGet, "/files/"+name, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFileHandler_ServesNestedName(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Save(bg, "patient_1/record_1.pdf", []byte("%PDF")); err != nil {
		t.Fatal(err)
	}

	rec := serveFile(store, "patient_1/record_1.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if rec.Body.String() != "%PDF" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestFileHandler_NotFound(t *testing.T) {
	rec := serveFile(NewMemoryStore(), "nope.pdf")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestFileHandler_RejectsTraversal(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/files/x", nil), httptest.NewRecorder())
	c.SetParamNames("*")
	c.SetParamValues("..%2Fetc%2Fpasswd")

	err := FileHandler(NewMemoryStore())(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
