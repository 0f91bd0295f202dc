package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tunnelwatch/internal/server/storage"
	"tunnelwatch/pkg/model"
)

func TestStore_RecentOldestFirst(t *testing.T) {
	s := NewStore(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		e := model.LogEntry{ID: fmt.Sprintf("id-%d", i), Path: fmt.Sprintf("/%d", i)}
		if err := s.Insert(ctx, &e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	rows, _ := s.Recent(ctx, 0)
	if len(rows) != 3 || rows[0].Path != "/3" || rows[2].Path != "/5" {
		t.Fatalf("rows=%+v", rows)
	}
	rows, _ = s.Recent(ctx, 2)
	if len(rows) != 2 || rows[0].Path != "/4" || rows[1].Path != "/5" {
		t.Fatalf("limited rows=%+v", rows)
	}
}

func TestStore_GetForgetsOverwritten(t *testing.T) {
	s := NewStore(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		e := model.LogEntry{ID: id}
		_ = s.Insert(ctx, &e)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected a to be overwritten, err=%v", err)
	}
	if e, err := s.Get(ctx, "c"); err != nil || e.ID != "c" {
		t.Fatalf("Get(c)=%+v, %v", e, err)
	}
}
