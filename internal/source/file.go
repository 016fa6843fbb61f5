package source

import (
	"context"
	"fmt"
	"os"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// FileSource reads the dataset from a local JSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path on every fetch.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the file the source reads.
func (s *FileSource) Path() string {
	return s.path
}

// Fetch reads and decodes the file.
func (s *FileSource) Fetch(ctx context.Context) (types.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, asFetchError("fetch cancelled", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, oerrors.NewFetchError(oerrors.CodeFetchFailed, fmt.Sprintf("read %s", s.path), err).WithRetryable(false)
	}
	return Decode(data)
}
