package source

import (
	"context"
	"testing"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/storage"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	ds, err := Decode([]byte(studentsJSON))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	size, err := WriteSnapshot(ctx, store, "snapshots/students.json.sz", ds)
	if err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}
	if size <= 0 {
		t.Errorf("expected positive size, got %d", size)
	}

	got, err := NewSnapshotSource(store, "snapshots/students.json.sz").Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !got.Equal(ds) {
		t.Error("snapshot should restore the dataset including field order")
	}
}

func TestSnapshot_Missing(t *testing.T) {
	store, _ := storage.NewLocalStorage(t.TempDir())
	_, err := NewSnapshotSource(store, "absent").Fetch(context.Background())
	if oerrors.GetCode(err) != oerrors.CodeFetchFailed {
		t.Fatalf("code = %s, want %s", oerrors.GetCode(err), oerrors.CodeFetchFailed)
	}
	if oerrors.IsRetryable(err) {
		t.Error("missing snapshot should not be retryable")
	}
}

func TestSnapshot_NotCompressed(t *testing.T) {
	ctx := context.Background()
	store, _ := storage.NewLocalStorage(t.TempDir())
	if err := store.Put(ctx, "raw", []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_, err := NewSnapshotSource(store, "raw").Fetch(ctx)
	if oerrors.GetCode(err) != oerrors.CodeDecodeFailed {
		t.Errorf("code = %s, want %s", oerrors.GetCode(err), oerrors.CodeDecodeFailed)
	}
}

func TestWriteSnapshot_RejectsNonUniform(t *testing.T) {
	store, _ := storage.NewLocalStorage(t.TempDir())
	ds := types.Dataset{
		types.NewRecord(types.Field{Name: "A", Value: 1.0}),
		types.NewRecord(types.Field{Name: "B", Value: 2.0}),
	}
	if _, err := WriteSnapshot(context.Background(), store, "bad", ds); err == nil {
		t.Fatal("expected error for non-uniform dataset")
	}
	if ok, _ := store.Exists(context.Background(), "bad"); ok {
		t.Error("nothing should be written for a rejected dataset")
	}
}
