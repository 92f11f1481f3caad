package shoutbox

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 10 * DefaultListLimit
)

const (
	EventPosted  = "posted"
	EventDeleted = "deleted"
)

type (
	Shout struct {
		ID        int64     `db:"id" json:"id"`
		UserID    int64     `db:"user_id" json:"user_id"`
		Text      string    `db:"text" json:"text"`
		CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	}

	// Event is pushed to live shoutbox listeners.
	Event struct {
		Type  string `json:"type"`
		Shout Shout  `json:"shout"`
	}

	// Publisher fans events out to listeners. Publish must not block.
	Publisher interface {
		Publish(evt Event)
	}

	NewShout struct {
		Text string `json:"text" validate:"required,notblank,max=500"`
	}
)

var _ core.Record = (*Shout)(nil)

func (*Shout) TableName() string { return "shouts" }

func (*Shout) Columns() []string { return []string{"user_id", "text", "created_at"} }

func (s *Shout) PK() int64 { return s.ID }

func (s *Shout) SetPK(id int64) { s.ID = id }

type Service struct {
	shouts    core.Table[Shout]
	publisher Publisher
	validate  *validator.Validate
}

func NewService(shouts core.Table[Shout], publisher Publisher, validate *validator.Validate) *Service {
	return &Service{shouts: shouts, publisher: publisher, validate: validate}
}

func newestFirst() []core.DBOrdering {
	return []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}
}

// ListLimit maps a client supplied count onto [1, MaxListLimit]; <= 0 means DefaultListLimit.
func ListLimit(n int64) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return int(n)
}

// List returns the latest messages, newest first, see ListLimit for the count.
func (svc *Service) List(ctx context.Context, limit int) ([]Shout, error) {
	limit = ListLimit(int64(limit))
	shouts, err := svc.shouts.Find(ctx, core.Query{Order: newestFirst(), Limit: limit})
	return shouts, errors.Wrap(err, "listing shouts")
}

func (svc *Service) Post(ctx context.Context, author core.Actor, text string) (Shout, error) {
	ns := NewShout{Text: core.CleanString(text)}
	if err := svc.validate.Struct(ns); err != nil {
		return Shout{}, err
	}

	s := Shout{UserID: author.ID, Text: ns.Text, CreatedAt: time.Now().UTC()}
	if err := svc.shouts.Store(ctx, &s); err != nil {
		return Shout{}, errors.Wrap(err, "posting shout")
	}
	svc.publisher.Publish(Event{Type: EventPosted, Shout: s})
	return s, nil
}

// Delete removes a message. Only its author or an admin may do so.
func (svc *Service) Delete(ctx context.Context, actor core.Actor, id int64) error {
	s, err := svc.shouts.Load(ctx, id)
	if err != nil {
		return errors.Wrap(err, "loading shout")
	}
	if !actor.CanModify(s.UserID) {
		return core.ErrForbidden
	}
	if err = svc.shouts.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "deleting shout")
	}
	svc.publisher.Publish(Event{Type: EventDeleted, Shout: s})
	return nil
}

// Prune keeps the newest `keep` messages and deletes the rest. It returns how many were deleted.
func (svc *Service) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	old, err := svc.shouts.Find(ctx, core.Query{Order: newestFirst(), Offset: keep})
	if err != nil {
		return 0, errors.Wrap(err, "listing old shouts")
	}
	if len(old) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(old))
	for i, s := range old {
		ids[i] = s.ID
	}
	if err = svc.shouts.Delete(ctx, ids...); err != nil {
		return 0, errors.Wrap(err, "pruning shouts")
	}
	return len(ids), nil
}
