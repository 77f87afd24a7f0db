package capture

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage"
)

func TestDecodeEntry(t *testing.T) {
	fi, err := decodeEntry("x1", `{"name":"home.lqaboss","size":42,"capturedAt":1714557600000}`)
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if fi.ID != "x1" || fi.Name != "home.lqaboss" || fi.Size != 42 {
		t.Fatalf("got %+v", fi)
	}
	if fi.UpdatedAt.Year() != 2024 {
		t.Fatalf("timestamp got %v", fi.UpdatedAt)
	}
	if _, err := decodeEntry("x2", "nope"); err == nil {
		t.Fatalf("expected error for corrupt entry")
	}
}

func TestSortNewestFirst(t *testing.T) {
	t0 := time.Unix(100, 0)
	files := []storage.FileInfo{
		{ID: "b", UpdatedAt: t0},
		{ID: "c", UpdatedAt: t0.Add(time.Minute)},
		{ID: "a", UpdatedAt: t0},
	}
	sortNewestFirst(files)
	if files[0].ID != "c" || files[1].ID != "a" || files[2].ID != "b" {
		t.Fatalf("order got %v", files)
	}
}

func TestReadOnly(t *testing.T) {
	s := &Store{}
	if s.Capabilities().CanSave {
		t.Fatalf("capture must not advertise saving")
	}
	if err := s.SaveFile(context.Background(), "x", nil); !errors.Is(err, apperr.ErrUnsupported) {
		t.Fatalf("SaveFile got %v", err)
	}
	if j, err := s.LoadAutoSaveData(context.Background(), "x", ""); j != nil || err != nil {
		t.Fatalf("LoadAutoSaveData got %v, %v", j, err)
	}
}

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, url, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	ids, err := s.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	id := "test-" + uuid.NewString()
	t.Cleanup(func() {
		s.rdb.Del(context.Background(), FilePrefix+id)
		s.rdb.HDel(context.Background(), IndexKey, id)
	})
	if err := s.Push(ctx, id, "page.lqaboss", []byte("zip"), time.Now()); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case got := <-ids:
		if got != id {
			t.Fatalf("announced %q want %q", got, id)
		}
	case <-ctx.Done():
		t.Fatalf("no announcement received")
	}

	b, err := s.LoadFile(ctx, id)
	if err != nil || string(b) != "zip" {
		t.Fatalf("LoadFile got %q, %v", b, err)
	}
	if _, err := s.LoadFile(ctx, id+"-missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing got %v", err)
	}
	files, err := s.ListFiles(ctx, "")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	found := false
	for _, f := range files {
		found = found || f.ID == id
	}
	if !found {
		t.Fatalf("pushed capture not listed")
	}
}
