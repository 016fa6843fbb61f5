package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/storage"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// SnapshotSource reads a snappy-compressed JSON dataset from object storage.
type SnapshotSource struct {
	store      storage.ObjectStorage
	objectPath string
}

// NewSnapshotSource creates a source reading objectPath from store.
func NewSnapshotSource(store storage.ObjectStorage, objectPath string) *SnapshotSource {
	return &SnapshotSource{store: store, objectPath: objectPath}
}

// Fetch downloads, decompresses and decodes the snapshot.
func (s *SnapshotSource) Fetch(ctx context.Context) (types.Dataset, error) {
	compressed, err := s.store.Get(ctx, s.objectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, oerrors.NewFetchError(oerrors.CodeFetchFailed, fmt.Sprintf("snapshot %s not found", s.objectPath), err).WithRetryable(false)
		}
		return nil, asFetchError(fmt.Sprintf("download snapshot %s", s.objectPath), err)
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, oerrors.NewFetchError(oerrors.CodeDecodeFailed, "snapshot is not snappy compressed", err)
	}
	return Decode(raw)
}

// WriteSnapshot stores ds at objectPath in the format SnapshotSource reads.
// It returns the compressed size in bytes.
func WriteSnapshot(ctx context.Context, store storage.ObjectStorage, objectPath string, ds types.Dataset) (int, error) {
	if err := ds.CheckUniform(); err != nil {
		return 0, fmt.Errorf("refusing to snapshot dataset: %w", err)
	}
	if ds == nil {
		ds = types.Dataset{}
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return 0, fmt.Errorf("failed to encode dataset: %w", err)
	}

	compressed := snappy.Encode(nil, raw)
	if err := store.Put(ctx, objectPath, compressed); err != nil {
		return 0, oerrors.NewStorageError(oerrors.CodeUploadFailed, fmt.Sprintf("upload snapshot %s", objectPath), err)
	}
	return len(compressed), nil
}
