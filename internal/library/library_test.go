package library

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func TestUpsertAndLookup(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	item := Item{Recid: "451647", ItemID: 42, DOI: "10.1023/A:1026654312961", Arxiv: "hep-th/9711200", Title: "Large N", Year: 1997}
	if err := lib.Upsert(ctx, item); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	id, ok, err := lib.Lookup(ctx, "451647")
	if err != nil || !ok || id != 42 {
		t.Errorf("Lookup = (%d, %v, %v), want (42, true, nil)", id, ok, err)
	}

	if _, ok, _ := lib.Lookup(ctx, "999"); ok {
		t.Error("Lookup of absent recid should miss")
	}

	id, ok, err = lib.LookupByDOI(ctx, "10.1023/A:1026654312961")
	if err != nil || !ok || id != 42 {
		t.Errorf("LookupByDOI = (%d, %v, %v)", id, ok, err)
	}

	id, ok, err = lib.LookupByArxiv(ctx, "hep-th/9711200")
	if err != nil || !ok || id != 42 {
		t.Errorf("LookupByArxiv = (%d, %v, %v)", id, ok, err)
	}
}

func TestUpsertReplaces(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	lib.Upsert(ctx, Item{Recid: "1", ItemID: 10})
	lib.Upsert(ctx, Item{Recid: "1", ItemID: 11})

	id, ok, err := lib.Lookup(ctx, "1")
	if err != nil || !ok || id != 11 {
		t.Errorf("Lookup after replace = (%d, %v, %v), want (11, true, nil)", id, ok, err)
	}

	n, err := lib.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count = (%d, %v), want 1", n, err)
	}
}

func TestRemove(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	lib.Upsert(ctx, Item{Recid: "1", ItemID: 10})
	if err := lib.Remove(ctx, "1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := lib.Lookup(ctx, "1"); ok {
		t.Error("removed item still present")
	}
	if err := lib.Remove(ctx, "absent"); err != nil {
		t.Errorf("Remove of absent item should not error: %v", err)
	}
}

func TestLookupBatchChunking(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	// More identifiers than one chunk to exercise the chunked path.
	n := LookupChunkSize + 37
	var recids []string
	for i := 0; i < n; i++ {
		recid := fmt.Sprintf("%d", i)
		recids = append(recids, recid)
		if i%3 == 0 {
			if err := lib.Upsert(ctx, Item{Recid: recid, ItemID: int64(i) + 1000}); err != nil {
				t.Fatalf("Upsert %d: %v", i, err)
			}
		}
	}

	got, err := lib.LookupBatch(ctx, recids)
	if err != nil {
		t.Fatalf("LookupBatch: %v", err)
	}

	want := 0
	for i := 0; i < n; i += 3 {
		want++
		recid := fmt.Sprintf("%d", i)
		if got[recid] != int64(i)+1000 {
			t.Errorf("LookupBatch[%s] = %d, want %d", recid, got[recid], i+1000)
		}
	}
	if len(got) != want {
		t.Errorf("LookupBatch returned %d entries, want %d", len(got), want)
	}
}

func TestLookupBatchEmpty(t *testing.T) {
	lib := openTestLibrary(t)
	got, err := lib.LookupBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("LookupBatch(nil): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LookupBatch(nil) = %v, want empty", got)
	}
}

func TestAll(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	lib.Upsert(ctx, Item{Recid: "2", ItemID: 20})
	lib.Upsert(ctx, Item{Recid: "1", ItemID: 10, Year: 2001})

	items, err := lib.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(items) != 2 || items[0].Recid != "1" || items[1].Recid != "2" {
		t.Errorf("All = %+v, want ordered by recid", items)
	}
	if items[0].Year != 2001 {
		t.Errorf("Year = %d, want 2001", items[0].Year)
	}
}
