package file

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klassenbuch/core"
)

type (
	// File is a shared document. The blob lives in a Store under StoredName.
	File struct {
		ID         int64       `db:"id" json:"id"`
		Name       string      `db:"name" json:"name"`
		StoredName string      `db:"stored_name" json:"-"`
		Size       int64       `db:"size" json:"size"`
		MimeType   null.String `db:"mime_type" json:"mime_type"`
		UploaderID int64       `db:"uploader_id" json:"uploader_id"`
		CreatedAt  time.Time   `db:"created_at" json:"created_at"` // UTC
	}

	// Blob is an opened stored file.
	Blob interface {
		io.ReadSeekCloser
	}

	// Store keeps blobs by name.
	// Open of a missing blob returns core.ErrNotFound; Remove of a missing blob is a no-op.
	Store interface {
		Put(ctx context.Context, r io.Reader, ext string) (name string, size int64, err error)
		Open(ctx context.Context, name string) (Blob, error)
		Remove(ctx context.Context, name string) error
	}
)

var _ core.Record = (*File)(nil)

func (*File) TableName() string { return "files" }

func (*File) Columns() []string {
	return []string{"name", "stored_name", "size", "mime_type", "uploader_id", "created_at"}
}

func (f *File) PK() int64 { return f.ID }

func (f *File) SetPK(id int64) { f.ID = id }

type NewFile struct {
	Name     string `json:"name" validate:"required,notblank,max=255,filename"`
	MimeType string `json:"mime_type" validate:"max=100"`
}

type Rename struct {
	Name string `json:"name" validate:"required,notblank,max=255,filename"`
}

type Service struct {
	files    core.Table[File]
	store    Store
	validate *validator.Validate
}

func NewService(files core.Table[File], store Store, validate *validator.Validate) *Service {
	return &Service{files: files, store: store, validate: validate}
}

// List returns all files, newest first.
func (svc *Service) List(ctx context.Context) ([]File, error) {
	fs, err := svc.files.Find(ctx, core.Query{
		Order: []core.DBOrdering{{Field: "created_at"}, {Field: "id"}},
	})
	return fs, errors.Wrap(err, "listing files")
}

func (svc *Service) Get(ctx context.Context, id int64) (File, error) {
	f, err := svc.files.Load(ctx, id)
	return f, errors.Wrap(err, "loading file")
}

// Add stores the content of r as a new file.
func (svc *Service) Add(ctx context.Context, uploader core.Actor, nf NewFile, r io.Reader) (File, error) {
	nf.Name = core.CleanString(nf.Name)
	nf.MimeType = core.CleanString(nf.MimeType, true /* lower */)
	if err := svc.validate.Struct(nf); err != nil {
		return File{}, err
	}

	stored, size, err := svc.store.Put(ctx, r, path.Ext(nf.Name))
	if err != nil {
		return File{}, errors.Wrap(err, "storing file")
	}
	f := File{
		Name:       nf.Name,
		StoredName: stored,
		Size:       size,
		MimeType:   null.NewString(nf.MimeType, nf.MimeType != ""),
		UploaderID: uploader.ID,
		CreatedAt:  time.Now().UTC(),
	}
	if err = svc.files.Store(ctx, &f); err != nil {
		_ = svc.store.Remove(ctx, stored)
		return File{}, errors.Wrap(err, "adding file")
	}
	return f, nil
}

// Open returns the file record and its blob. The caller closes the blob.
func (svc *Service) Open(ctx context.Context, id int64) (File, Blob, error) {
	f, err := svc.Get(ctx, id)
	if err != nil {
		return File{}, nil, err
	}
	blob, err := svc.store.Open(ctx, f.StoredName)
	if err != nil {
		return File{}, nil, errors.Wrap(err, "opening file")
	}
	return f, blob, nil
}

func (svc *Service) Rename(ctx context.Context, actor core.Actor, id int64, name string) (File, error) {
	r := Rename{Name: core.CleanString(name)}
	if err := svc.validate.Struct(r); err != nil {
		return File{}, err
	}
	f, err := svc.Get(ctx, id)
	if err != nil {
		return File{}, err
	}
	if !actor.CanModify(f.UploaderID) {
		return File{}, core.ErrForbidden
	}

	f.Name = r.Name
	if err = svc.files.Store(ctx, &f); err != nil {
		return File{}, errors.Wrap(err, "renaming file")
	}
	return f, nil
}

// Delete removes the file record and its stored blob.
func (svc *Service) Delete(ctx context.Context, actor core.Actor, id int64) error {
	f, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanModify(f.UploaderID) {
		return core.ErrForbidden
	}
	if err = svc.files.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "deleting file")
	}
	return errors.Wrap(svc.store.Remove(ctx, f.StoredName), "removing stored file")
}
