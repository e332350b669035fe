package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kr/pretty"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	runs := []Run{
		{File: "a.mk", SourceHash: Hash("a"), ExitCode: 0, Duration: time.Millisecond, StartedAt: base},
		{File: "b.mk", SourceHash: Hash("b"), ExitCode: 1, Diagnostics: []string{"[L1, C1] x", "[L2, C1] y"}, StartedAt: base.Add(time.Second)},
		{File: "c.mk", SourceHash: Hash("c"), ExitCode: 2, Diagnostics: []string{"[L3, C4] RuntimeFault: division by zero"}, StartedAt: base.Add(2 * time.Second)},
	}
	for i := range runs {
		id, err := store.Record(ctx, runs[i])
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("Record returned non-uuid id %q", id)
		}
		runs[i].ID = id
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []Run{runs[2], runs[1]}
	for i := range want {
		want[i].StartedAt = time.Unix(0, want[i].StartedAt.UnixNano())
	}
	if diff := pretty.Diff(want, got); len(diff) > 0 {
		t.Errorf("Recent mismatch:\n%v", diff)
	}
}

func TestRecentEmpty(t *testing.T) {
	store := openTemp(t)
	got, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no runs, got %d", len(got))
	}
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", ""); err == nil {
		t.Errorf("expected unsupported driver error")
	}
}

func TestHash(t *testing.T) {
	if Hash("fn main() {}") != Hash("fn main() {}") {
		t.Errorf("Hash is not deterministic")
	}
	if Hash("a") == Hash("b") {
		t.Errorf("distinct sources share a hash")
	}
	if len(Hash("")) != 64 {
		t.Errorf("Hash length = %d, want 64", len(Hash("")))
	}
}
