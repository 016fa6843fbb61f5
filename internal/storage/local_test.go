package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestLocalStorage_PutGet(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	objectPath := "snapshots/students.json.sz"
	content := []byte("hello world")
	if err := storage.Put(ctx, objectPath, content); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	got, err := storage.Get(ctx, objectPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}

	if err := storage.Put(ctx, objectPath, []byte("replaced")); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	got, _ = storage.Get(ctx, objectPath)
	if string(got) != "replaced" {
		t.Errorf("expected replaced content, got %q", got)
	}

	if err := storage.Delete(ctx, objectPath); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	exists, err = storage.Exists(ctx, objectPath)
	if err != nil {
		t.Fatalf("Exists after delete failed: %v", err)
	}
	if exists {
		t.Error("expected object to not exist after delete")
	}
}

func TestLocalStorage_GetMissing(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	_, err = storage.Get(context.Background(), "missing/object")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLocalStorage_DeleteIdempotent(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	if err := storage.Delete(context.Background(), "never/existed"); err != nil {
		t.Errorf("deleting a missing object should succeed, got %v", err)
	}
}

func TestLocalStorage_ListObjects(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx := context.Background()

	for _, p := range []string{"snapshots/b", "snapshots/a", "other/c"} {
		if err := storage.Put(ctx, p, []byte(p)); err != nil {
			t.Fatalf("Put %s failed: %v", p, err)
		}
	}

	objects, err := storage.ListObjects(ctx, "snapshots")
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if want := []string{"snapshots/a", "snapshots/b"}; !reflect.DeepEqual(objects, want) {
		t.Errorf("objects = %v, want %v", objects, want)
	}

	none, err := storage.ListObjects(ctx, "nothing-here")
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty listing, got %v, %v", none, err)
	}
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := storage.Put(ctx, "x", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
