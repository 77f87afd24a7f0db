package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := New(root, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, root
}

func write(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	s, root := newStore(t)
	write(t, root, "jobs/a.lqaboss", []byte("zipbytes"))
	ctx := context.Background()

	b, err := s.LoadFile(ctx, "jobs/a.lqaboss")
	if err != nil || string(b) != "zipbytes" {
		t.Fatalf("LoadFile got %q, %v", b, err)
	}
	if _, err := s.LoadFile(ctx, filepath.Join(root, "jobs", "a.lqaboss")); err != nil {
		t.Fatalf("absolute id inside root: %v", err)
	}
	if _, err := s.LoadFile(ctx, "jobs/missing.lqaboss"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing: got %v", err)
	}
	if _, err := s.LoadFile(ctx, "../../etc/passwd"); err == nil {
		t.Fatalf("escaping the root must fail")
	}
	if _, err := s.LoadFile(ctx, filepath.Dir(root)); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("absolute id outside root: got %v", err)
	}
}

func TestSaveAndLoadAutoSave(t *testing.T) {
	s, root := newStore(t)
	ctx := context.Background()

	got, err := s.LoadAutoSaveData(ctx, "jobs/a.lqaboss", "")
	if err != nil || got != nil {
		t.Fatalf("absent companion got %v, %v", got, err)
	}

	payload := &job.Job{SourceLang: "en", TargetLang: "it", TUs: []*job.TU{
		{GUID: "a", NSrc: job.Parts{job.Text("Hi")}, NTgt: job.Parts{job.Text("Ciao")}},
	}}
	if err := s.SaveFile(ctx, "jobs/a.lqaboss", payload); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "jobs", "a.json")); err != nil {
		t.Fatalf("companion not written next to package: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "jobs"))
	for _, e := range entries {
		if e.Name() != "a.json" {
			t.Fatalf("leftover file %s", e.Name())
		}
	}

	got, err = s.LoadAutoSaveData(ctx, "jobs/a.lqaboss", "a.lqaboss")
	if err != nil {
		t.Fatalf("LoadAutoSaveData: %v", err)
	}
	if len(got.TUs) != 1 || got.TUs[0].NTgt.PlainText() != "Ciao" {
		t.Fatalf("companion got %+v", got)
	}
}

func TestLoadAutoSaveCorrupt(t *testing.T) {
	s, root := newStore(t)
	write(t, root, "b.json", []byte("{not json"))
	_, err := s.LoadAutoSaveData(context.Background(), "b.lqaboss", "")
	if !errors.Is(err, apperr.ErrAutoSaveUnavailable) {
		t.Fatalf("got %v", err)
	}
}

func TestListFiles(t *testing.T) {
	s, root := newStore(t)
	write(t, root, "b.lqaboss", []byte("bb"))
	write(t, root, "b.json", []byte("{}"))
	write(t, root, "sub/a.lqaboss", []byte("a"))

	files, err := s.ListFiles(context.Background(), "")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 || files[0].ID != "b.lqaboss" || files[1].ID != "sub/a.lqaboss" {
		t.Fatalf("got %+v", files)
	}
	if files[0].Size != 2 || files[1].Name != "a.lqaboss" || files[0].UpdatedAt.IsZero() {
		t.Fatalf("file info got %+v", files)
	}

	sub, err := s.ListFiles(context.Background(), "sub")
	if err != nil || len(sub) != 1 || sub[0].ID != "sub/a.lqaboss" {
		t.Fatalf("sub listing got %+v, %v", sub, err)
	}
}

func TestContextCanceled(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SaveFile(ctx, "x.lqaboss", &job.Job{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}
