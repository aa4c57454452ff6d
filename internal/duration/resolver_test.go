package duration

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeCatalog struct {
	playlists map[string][]string
	lengths   map[string]int64
	failWith  error
}

func (f *fakeCatalog) SequenceLength(_ context.Context, sequenceID string) (int64, bool, error) {
	if f.failWith != nil {
		return 0, false, f.failWith
	}
	ms, ok := f.lengths[sequenceID]
	return ms, ok, nil
}

func (f *fakeCatalog) PlaylistItems(_ context.Context, playlistID string) ([]string, error) {
	return f.playlists[playlistID], nil
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		playlists: map[string][]string{
			"main":  {"seq-a", "seq-b", "seq-c"},
			"intro": {"seq-d"},
			"outro": {"seq-e"},
			"holes": {"seq-a", "ghost", "seq-b", "ghost"},
			"empty": {},
		},
		lengths: map[string]int64{
			"seq-a": 120000,
			"seq-b": 90000,
			"seq-c": 60000,
			"seq-d": 15000,
			"seq-e": 5000,
		},
	}
}

func strptr(s string) *string { return &s }

func TestResolve(t *testing.T) {
	resolver := NewResolver(newFakeCatalog(), zerolog.Nop())

	tests := []struct {
		name        string
		playlistID  string
		pre         *string
		post        *string
		wantTotal   int64
		wantMissing []string
	}{
		{
			name:       "three sequences sum in order",
			playlistID: "main",
			wantTotal:  270000,
		},
		{
			name:       "pre and post added around main total",
			playlistID: "main",
			pre:        strptr("intro"),
			post:       strptr("outro"),
			wantTotal:  290000,
		},
		{
			name:        "missing sequence counts zero and is flagged once",
			playlistID:  "holes",
			wantTotal:   210000,
			wantMissing: []string{"ghost"},
		},
		{
			name:       "empty playlist resolves to zero",
			playlistID: "empty",
			wantTotal:  0,
		},
		{
			name:       "unknown playlist degrades to zero",
			playlistID: "nope",
			wantTotal:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), tt.playlistID, tt.pre, tt.post)
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got.TotalMs != tt.wantTotal {
				t.Errorf("Resolve() total = %d, want %d", got.TotalMs, tt.wantTotal)
			}
			if len(got.Missing) != len(tt.wantMissing) {
				t.Fatalf("Resolve() missing = %v, want %v", got.Missing, tt.wantMissing)
			}
			for i, id := range tt.wantMissing {
				if got.Missing[i] != id {
					t.Errorf("Resolve() missing[%d] = %s, want %s", i, got.Missing[i], id)
				}
			}
		})
	}
}

func TestResolveLoopDoesNotInflate(t *testing.T) {
	// Loop is a runtime behavior; the resolver always reports one
	// pass-through length, so resolving the same playlist twice must
	// agree regardless of playback modifiers.
	resolver := NewResolver(newFakeCatalog(), zerolog.Nop())

	first, err := resolver.Resolve(context.Background(), "main", nil, nil)
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), "main", nil, nil)
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if first.TotalMs != second.TotalMs || first.TotalMs != 270000 {
		t.Errorf("Resolve() = %d then %d, want stable 270000", first.TotalMs, second.TotalMs)
	}
}

func TestResolveCatalogError(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.failWith = errors.New("catalog offline")
	resolver := NewResolver(catalog, zerolog.Nop())

	if _, err := resolver.Resolve(context.Background(), "main", nil, nil); err == nil {
		t.Fatal("Resolve() expected catalog error, got nil")
	}
}

func TestItemLengths(t *testing.T) {
	resolver := NewResolver(newFakeCatalog(), zerolog.Nop())

	got, err := resolver.ItemLengths(context.Background(), "holes")
	if err != nil {
		t.Fatalf("ItemLengths() unexpected error: %v", err)
	}
	want := []int64{120000, 0, 90000, 0}
	if len(got) != len(want) {
		t.Fatalf("ItemLengths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ItemLengths()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestResultDiagnostics(t *testing.T) {
	res := Result{TotalMs: 1000, Missing: []string{"ghost"}}
	diags := res.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Diagnostics() = %v, want one entry", diags)
	}
	if diags[0].Ref != "ghost" {
		t.Errorf("Diagnostics()[0].Ref = %s, want ghost", diags[0].Ref)
	}
}
