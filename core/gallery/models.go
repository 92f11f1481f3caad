package gallery

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klassenbuch/core"
)

type Album struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	CreatorID int64     `db:"creator_id" json:"creator_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
}

var _ core.Record = (*Album)(nil)

func (*Album) TableName() string { return "albums" }

func (*Album) Columns() []string { return []string{"title", "creator_id", "created_at"} }

func (a *Album) PK() int64 { return a.ID }

func (a *Album) SetPK(id int64) { a.ID = id }

// Picture is an image of an album. The image and its thumbnail live in separate stores.
type Picture struct {
	ID         int64       `db:"id" json:"id"`
	AlbumID    int64       `db:"album_id" json:"album_id"`
	FileName   string      `db:"file_name" json:"file_name"`
	ThumbName  string      `db:"thumb_name" json:"thumb_name"`
	Caption    null.String `db:"caption" json:"caption"`
	UploaderID int64       `db:"uploader_id" json:"uploader_id"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"` // UTC
}

var _ core.Record = (*Picture)(nil)

func (*Picture) TableName() string { return "pictures" }

func (*Picture) Columns() []string {
	return []string{"album_id", "file_name", "thumb_name", "caption", "uploader_id", "created_at"}
}

func (p *Picture) PK() int64 { return p.ID }

func (p *Picture) SetPK(id int64) { p.ID = id }

type NewAlbum struct {
	Title string `json:"title" validate:"required,notblank,max=255"`
}

type SetCaption struct {
	Caption string `json:"caption" validate:"max=1000"`
}
