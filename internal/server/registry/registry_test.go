package registry

import (
	"testing"
	"time"
)

func TestRegistry_ActiveExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := New(time.Minute)
	r.now = func() time.Time { return now }

	r.Touch("beta")
	r.Touch("alpha")
	r.Touch("")
	if got := r.Active(); len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("active=%v", got)
	}

	now = now.Add(45 * time.Second)
	r.Touch("beta")
	now = now.Add(30 * time.Second)
	if got := r.Active(); len(got) != 1 || got[0] != "beta" {
		t.Fatalf("active=%v", got)
	}
}
