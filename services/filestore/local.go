package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/file"
)

var errInvalidName = errors.New("invalid stored file name")

// LocalStore keeps blobs as flat files under a root directory.
type LocalStore struct {
	root string
}

var _ file.Store = (*LocalStore)(nil)

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errInvalidName
	}
	return filepath.Join(s.root, name), nil
}

func (s *LocalStore) Open(_ context.Context, name string) (file.Blob, error) {
	fp, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Remove(_ context.Context, name string) error {
	fp, err := s.path(name)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Put copies r into a new blob named after a random uuid, keeping ext.
// It returns the stored name and the number of bytes written.
func (s *LocalStore) Put(_ context.Context, r io.Reader, ext string) (string, int64, error) {
	name := uuid.New().String() + strings.ToLower(ext)
	fp, err := s.path(name)
	if err != nil {
		return "", 0, err
	}

	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, errors.Wrap(err, "creating blob")
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(fp)
		return "", 0, errors.Wrap(err, "writing blob")
	}
	return name, n, nil
}
