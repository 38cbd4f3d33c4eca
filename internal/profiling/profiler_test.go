package profiling

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProfilerWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	p, err := New(&Config{OutputDir: dir, ProfileName: "test"})
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err == nil {
		t.Error("second Stop should fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var cpu, heap bool
	for _, e := range entries {
		cpu = cpu || strings.HasPrefix(e.Name(), "test-cpu-")
		heap = heap || strings.HasPrefix(e.Name(), "test-heap-")
	}
	if !cpu || !heap {
		t.Errorf("expected cpu and heap profiles, found %v", entries)
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from the pprof index, got %d", rec.Code)
	}
}
