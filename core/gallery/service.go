package gallery

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/file"
)

type Service struct {
	albums   core.Table[Album]
	pictures core.Table[Picture]
	images   file.Store
	thumbs   file.Store
	validate *validator.Validate
}

func NewService(
	albums core.Table[Album],
	pictures core.Table[Picture],
	images file.Store,
	thumbs file.Store,
	validate *validator.Validate,
) *Service {
	return &Service{albums: albums, pictures: pictures, images: images, thumbs: thumbs, validate: validate}
}

// ListAlbums returns the albums, newest first.
func (svc *Service) ListAlbums(ctx context.Context) ([]Album, error) {
	as, err := svc.albums.Find(ctx, core.Query{
		Order: []core.DBOrdering{{Field: "created_at"}, {Field: "id"}},
	})
	return as, errors.Wrap(err, "listing albums")
}

func (svc *Service) AddAlbum(ctx context.Context, creator core.Actor, title string) (Album, error) {
	na := NewAlbum{Title: core.CleanString(title)}
	if err := svc.validate.Struct(na); err != nil {
		return Album{}, err
	}

	a := Album{Title: na.Title, CreatorID: creator.ID, CreatedAt: time.Now().UTC()}
	if err := svc.albums.Store(ctx, &a); err != nil {
		return Album{}, errors.Wrap(err, "adding album")
	}
	return a, nil
}

// DeleteAlbum removes the album along with its pictures.
func (svc *Service) DeleteAlbum(ctx context.Context, actor core.Actor, id int64) error {
	a, err := svc.albums.Load(ctx, id)
	if err != nil {
		return errors.Wrap(err, "loading album")
	}
	if !actor.CanModify(a.CreatorID) {
		return core.ErrForbidden
	}

	pics, err := svc.listPictures(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range pics {
		if err = svc.removePicture(ctx, p); err != nil {
			return err
		}
	}
	return errors.Wrap(svc.albums.Delete(ctx, id), "deleting album")
}

// ListPictures returns the pictures of an album in upload order.
func (svc *Service) ListPictures(ctx context.Context, albumID int64) ([]Picture, error) {
	if _, err := svc.albums.Load(ctx, albumID); err != nil {
		return nil, errors.Wrap(err, "loading album")
	}
	return svc.listPictures(ctx, albumID)
}

func (svc *Service) listPictures(ctx context.Context, albumID int64) ([]Picture, error) {
	pics, err := svc.pictures.Find(ctx, core.Query{
		Where: core.Eq("album_id", albumID),
		Order: []core.DBOrdering{{Field: "created_at", Ascending: true}, {Field: "id", Ascending: true}},
	})
	return pics, errors.Wrap(err, "listing pictures")
}

// SetCaption sets the caption of a picture; an empty caption clears it.
func (svc *Service) SetCaption(ctx context.Context, actor core.Actor, id int64, caption string) (Picture, error) {
	sc := SetCaption{Caption: core.CleanString(caption)}
	if err := svc.validate.Struct(sc); err != nil {
		return Picture{}, err
	}
	p, err := svc.pictures.Load(ctx, id)
	if err != nil {
		return Picture{}, errors.Wrap(err, "loading picture")
	}
	if !actor.CanModify(p.UploaderID) {
		return Picture{}, core.ErrForbidden
	}

	p.Caption = null.NewString(sc.Caption, sc.Caption != "")
	if err = svc.pictures.Store(ctx, &p); err != nil {
		return Picture{}, errors.Wrap(err, "setting caption")
	}
	return p, nil
}

// DeletePicture removes a picture with its image and thumbnail.
func (svc *Service) DeletePicture(ctx context.Context, actor core.Actor, id int64) error {
	p, err := svc.pictures.Load(ctx, id)
	if err != nil {
		return errors.Wrap(err, "loading picture")
	}
	if !actor.CanModify(p.UploaderID) {
		return core.ErrForbidden
	}
	return svc.removePicture(ctx, p)
}

func (svc *Service) removePicture(ctx context.Context, p Picture) error {
	if err := svc.pictures.Delete(ctx, p.ID); err != nil {
		return errors.Wrap(err, "deleting picture")
	}
	if err := svc.images.Remove(ctx, p.FileName); err != nil {
		return errors.Wrap(err, "removing image")
	}
	return errors.Wrap(svc.thumbs.Remove(ctx, p.ThumbName), "removing thumbnail")
}
