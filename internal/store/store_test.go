package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/mailidx/internal/document"
	"github.com/wesm/mailidx/internal/store"
	"github.com/wesm/mailidx/internal/terms"
	"github.com/wesm/mailidx/internal/testutil"
)

func countRows(t *testing.T, st *store.Store, table string) int {
	t.Helper()
	var n int
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestReplaceDocument_StoresPostingsAndPayload(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	doc := testutil.NewDocument("abc@example.com").
		WithSubject("Quarterly report").
		WithBody("the report the numbers").
		WithSource("work", 7).
		Build()
	testutil.SeedStore(t, st, doc)

	got, err := st.Document(ctx, "Q:abc@example.com")
	testutil.MustNoErr(t, err, "Document")
	if got.Payload.Title != "Quarterly report" || got.Payload.Filename != "work" || got.Payload.MessageNum != 7 {
		t.Errorf("payload = %+v", got.Payload)
	}

	want := 0
	for _, term := range doc.Terms {
		want += term.Weight
	}
	want += len(doc.DateTerms)
	if got.Length != want {
		t.Errorf("length = %d, want %d", got.Length, want)
	}

	tf, err := st.Terms(ctx, "Q:abc@example.com")
	testutil.MustNoErr(t, err, "Terms")
	if tf["the"] != 2 {
		t.Errorf("wdf(the) = %d, want 2", tf["the"])
	}
	for _, key := range []string{"SRquarterly", "Squarterly", "XFILENAMEwork", "D20240101", "Y2024", "M202401", "W2024010"} {
		if tf[key] == 0 {
			t.Errorf("missing term %q", key)
		}
	}
	if _, ok := tf["Q:abc@example.com"]; ok {
		t.Error("key term should not be indexed as a posting")
	}
}

func TestReplaceDocument_ReplacesByKey(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedStore(t, st, testutil.NewDocument("same@example.com").WithBody("apples").Build())
	first := countRows(t, st, "postings")

	testutil.SeedStore(t, st, testutil.NewDocument("same@example.com").WithBody("oranges").Build())

	if n := countRows(t, st, "documents"); n != 1 {
		t.Fatalf("documents = %d, want 1", n)
	}
	tf, err := st.Terms(ctx, "Q:same@example.com")
	testutil.MustNoErr(t, err, "Terms")
	if _, ok := tf["apples"]; ok {
		t.Error("old body term survived replacement")
	}
	if tf["oranges"] != 1 {
		t.Errorf("wdf(oranges) = %d, want 1", tf["oranges"])
	}
	if n := countRows(t, st, "postings"); n != first {
		t.Errorf("postings = %d after replace, want %d", n, first)
	}
}

func TestReplaceDocument_Idempotent(t *testing.T) {
	st := testutil.NewTestStore(t)
	doc := testutil.NewDocument("twice@example.com").WithBody("hello hello world").Build()

	testutil.SeedStore(t, st, doc)
	counts := []int{countRows(t, st, "documents"), countRows(t, st, "postings"), countRows(t, st, "positions")}
	testutil.SeedStore(t, st, doc)
	again := []int{countRows(t, st, "documents"), countRows(t, st, "postings"), countRows(t, st, "positions")}

	if diff := cmp.Diff(counts, again); diff != "" {
		t.Errorf("row counts changed on rewrite (-first +second):\n%s", diff)
	}
}

func TestReplaceDocument_PositionsDeduplicated(t *testing.T) {
	st := testutil.NewTestStore(t)
	doc := &document.Document{
		KeyTerm: "Q:dup",
		Terms: []terms.Term{
			{Text: "x", Position: 1, Weight: 1},
			{Text: "x", Position: 1, Weight: 1},
		},
	}
	testutil.SeedStore(t, st, doc)
	if n := countRows(t, st, "positions"); n != 1 {
		t.Errorf("positions = %d, want 1", n)
	}
}

func TestReplaceDocument_EmptyKey(t *testing.T) {
	st := testutil.NewTestStore(t)
	if err := st.ReplaceDocument(context.Background(), &document.Document{}); err == nil {
		t.Fatal("expected error for empty key term")
	}
}

func TestReplaceDocument_ManyTerms(t *testing.T) {
	st := testutil.NewTestStore(t)
	words := make([]string, 2000)
	for i := range words {
		words[i] = "w" + strings.Repeat("x", i%50) + string(rune('a'+i%26))
	}
	doc := testutil.NewDocument("big@example.com").WithBody(strings.Join(words, " ")).Build()
	testutil.SeedStore(t, st, doc)

	if n := countRows(t, st, "positions"); n < 2000 {
		t.Errorf("positions = %d, want at least 2000", n)
	}
}

func TestDeleteDocument(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.SeedStore(t, st,
		testutil.NewDocument("keep@example.com").Build(),
		testutil.NewDocument("drop@example.com").Build(),
	)

	testutil.MustNoErr(t, st.DeleteDocument(ctx, "Q:drop@example.com"), "DeleteDocument")

	if _, err := st.Document(ctx, "Q:drop@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Document after delete: err = %v, want ErrNotFound", err)
	}
	if _, err := st.Document(ctx, "Q:keep@example.com"); err != nil {
		t.Errorf("other document lost: %v", err)
	}
	if err := st.DeleteDocument(ctx, "Q:drop@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}

	var orphans int
	err := st.DB().QueryRow(`SELECT COUNT(*) FROM postings WHERE doc_id NOT IN (SELECT id FROM documents)`).Scan(&orphans)
	testutil.MustNoErr(t, err, "count orphans")
	if orphans != 0 {
		t.Errorf("orphan postings = %d", orphans)
	}
}

func TestOpen_ReadOnly(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	if _, err := store.Open(dbPath, store.ModeReadOnly); !errors.Is(err, store.ErrNoIndex) {
		t.Fatalf("open missing index: err = %v, want ErrNoIndex", err)
	}

	rw, err := store.Open(dbPath, store.ModeReadWrite)
	testutil.MustNoErr(t, err, "open read-write")
	testutil.SeedStore(t, rw, testutil.NewDocument("ro@example.com").Build())
	testutil.MustNoErr(t, rw.Flush(ctx), "Flush")
	testutil.MustNoErr(t, rw.Close(), "Close")

	ro, err := store.Open(dbPath, store.ModeReadOnly)
	testutil.MustNoErr(t, err, "open read-only")
	defer ro.Close()

	if ro.Mode() != store.ModeReadOnly {
		t.Errorf("Mode() = %v, want ModeReadOnly", ro.Mode())
	}
	if _, err := ro.Document(ctx, "Q:ro@example.com"); err != nil {
		t.Errorf("read through read-only store: %v", err)
	}
	if err := ro.ReplaceDocument(ctx, testutil.NewDocument("x@example.com").Build()); !errors.Is(err, store.ErrReadOnly) {
		t.Errorf("ReplaceDocument: err = %v, want ErrReadOnly", err)
	}
	if err := ro.DeleteDocument(ctx, "Q:ro@example.com"); !errors.Is(err, store.ErrReadOnly) {
		t.Errorf("DeleteDocument: err = %v, want ErrReadOnly", err)
	}
	if err := ro.PutCheckpoint(ctx, "inbox", store.Checkpoint{}); !errors.Is(err, store.ErrReadOnly) {
		t.Errorf("PutCheckpoint: err = %v, want ErrReadOnly", err)
	}
}

func TestOpen_ReadOnlyNotAnIndex(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "junk.db", []byte(strings.Repeat("not a database ", 100)))
	if _, err := store.Open(path, store.ModeReadOnly); err == nil {
		t.Fatal("expected error opening a non-database file")
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "index.db")
	st, err := store.Open(dbPath, store.ModeReadWrite)
	testutil.MustNoErr(t, err, "Open")
	defer st.Close()
	testutil.MustExist(t, filepath.Dir(dbPath))
	if st.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", st.Path(), dbPath)
	}
}

func TestCheckpoints(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	_, ok, err := st.GetCheckpoint(ctx, "inbox")
	testutil.MustNoErr(t, err, "GetCheckpoint")
	if ok {
		t.Fatal("expected no checkpoint")
	}

	testutil.MustNoErr(t, st.PutCheckpoint(ctx, "inbox", store.Checkpoint{Offset: 100, MessageCount: 2, FileSize: 150}), "PutCheckpoint")
	testutil.MustNoErr(t, st.PutCheckpoint(ctx, "inbox", store.Checkpoint{Offset: 300, MessageCount: 5, FileSize: 300}), "PutCheckpoint")

	cp, ok, err := st.GetCheckpoint(ctx, "inbox")
	testutil.MustNoErr(t, err, "GetCheckpoint")
	if !ok {
		t.Fatal("checkpoint missing")
	}
	if diff := cmp.Diff(store.Checkpoint{Offset: 300, MessageCount: 5, FileSize: 300}, cp); diff != "" {
		t.Errorf("checkpoint mismatch (-want +got):\n%s", diff)
	}

	testutil.MustNoErr(t, st.ClearCheckpoint(ctx, "inbox"), "ClearCheckpoint")
	if _, ok, _ := st.GetCheckpoint(ctx, "inbox"); ok {
		t.Error("checkpoint survived ClearCheckpoint")
	}
}

func TestStats(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.SeedStore(t, st,
		testutil.NewDocument("a@example.com").WithBody("alpha").Build(),
		testutil.NewDocument("b@example.com").WithBody("beta").Build(),
	)
	testutil.MustNoErr(t, st.PutCheckpoint(ctx, "inbox", store.Checkpoint{Offset: 1}), "PutCheckpoint")
	testutil.MustNoErr(t, st.Flush(ctx), "Flush")

	stats, err := st.Stats(ctx)
	testutil.MustNoErr(t, err, "Stats")
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.Checkpoints != 1 {
		t.Errorf("Checkpoints = %d, want 1", stats.Checkpoints)
	}
	if stats.Terms == 0 || stats.Postings < stats.Terms {
		t.Errorf("Terms = %d, Postings = %d", stats.Terms, stats.Postings)
	}
	if stats.AverageLength <= 0 {
		t.Errorf("AverageLength = %v", stats.AverageLength)
	}
	info, err := os.Stat(st.Path())
	testutil.MustNoErr(t, err, "stat")
	if stats.DatabaseSize != info.Size() {
		t.Errorf("DatabaseSize = %d, want %d", stats.DatabaseSize, info.Size())
	}
}
