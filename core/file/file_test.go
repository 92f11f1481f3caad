package file_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/file"
	"github.com/trezcool/klassenbuch/services/filestore"
	inmemdb "github.com/trezcool/klassenbuch/storage/database/inmem"
	testutil "github.com/trezcool/klassenbuch/tests"
)

var (
	ada   = core.Actor{ID: 1, Name: "Ada"}
	bob   = core.Actor{ID: 2, Name: "Bob"}
	admin = core.Actor{ID: 3, Name: "Admin", IsAdmin: true}
)

func setup(t *testing.T) (*file.Service, *filestore.LocalStore) {
	store, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	validate, _ := testutil.NewValidator()
	return file.NewService(inmemdb.NewTable[file.File](), store, validate), store
}

func TestService_AddOpen(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	_, err := svc.Add(ctx, ada, file.NewFile{Name: "../evil.sh"}, strings.NewReader("x"))
	assert.Error(t, err)

	f, err := svc.Add(ctx, ada, file.NewFile{Name: " Timetable.PDF ", MimeType: "Application/PDF"}, strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "Timetable.PDF", f.Name)
	assert.Equal(t, int64(8), f.Size)
	assert.Equal(t, "application/pdf", f.MimeType.String)
	assert.True(t, strings.HasSuffix(f.StoredName, ".pdf"))

	got, blob, err := svc.Open(ctx, f.ID)
	require.NoError(t, err)
	defer blob.Close()
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, f.ID, got.ID)

	fs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, fs, 1)
}

func TestService_RenameDelete(t *testing.T) {
	ctx := context.Background()
	svc, store := setup(t)

	f, err := svc.Add(ctx, ada, file.NewFile{Name: "notes.txt"}, strings.NewReader("hello"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		actor     core.Actor
		newName   string
		forbidden bool
		invalid   bool
	}{
		{name: "someone else", actor: bob, newName: "mine.txt", forbidden: true},
		{name: "path separator", actor: ada, newName: "a/b.txt", invalid: true},
		{name: "owner", actor: ada, newName: "notes-v2.txt"},
		{name: "admin", actor: admin, newName: "notes-final.txt"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			renamed, err := svc.Rename(ctx, tc.actor, f.ID, tc.newName)
			switch {
			case tc.forbidden:
				assert.Equal(t, core.ErrForbidden, err)
				return
			case tc.invalid:
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.newName, renamed.Name)
		})
	}

	assert.Equal(t, core.ErrForbidden, svc.Delete(ctx, bob, f.ID))
	require.NoError(t, svc.Delete(ctx, ada, f.ID))

	_, err = store.Open(ctx, f.StoredName)
	assert.Equal(t, core.ErrNotFound, err)
	_, _, err = svc.Open(ctx, f.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}
