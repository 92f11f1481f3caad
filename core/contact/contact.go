package contact

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
)

// Contact is an entry of the class address book.
type Contact struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

var _ core.Record = (*Contact)(nil)

func (*Contact) TableName() string { return "contacts" }

func (*Contact) Columns() []string {
	return []string{"name", "email", "phone", "address", "notes", "created_at", "updated_at"}
}

func (c *Contact) PK() int64 { return c.ID }

func (c *Contact) SetPK(id int64) { c.ID = id }

// NewContact is used both to create and to replace a Contact.
type NewContact struct {
	Name    string `json:"name" validate:"required,notblank,max=100"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=50"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

func (nc *NewContact) clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.Phone = core.CleanString(nc.Phone)
	nc.Address = core.CleanString(nc.Address)
	nc.Notes = core.CleanString(nc.Notes)
}

func (nc NewContact) bind(c *Contact) {
	c.Name = nc.Name
	c.Email = nc.Email
	c.Phone = nc.Phone
	c.Address = nc.Address
	c.Notes = nc.Notes
}

type Service struct {
	contacts core.Table[Contact]
	validate *validator.Validate
}

func NewService(contacts core.Table[Contact], validate *validator.Validate) *Service {
	return &Service{contacts: contacts, validate: validate}
}

func (svc *Service) List(ctx context.Context) ([]Contact, error) {
	cs, err := svc.contacts.Find(ctx, core.Query{Order: []core.DBOrdering{{Field: "name", Ascending: true}}})
	return cs, errors.Wrap(err, "listing contacts")
}

func (svc *Service) Get(ctx context.Context, id int64) (Contact, error) {
	c, err := svc.contacts.Load(ctx, id)
	return c, errors.Wrap(err, "loading contact")
}

func (svc *Service) Create(ctx context.Context, nc NewContact) (Contact, error) {
	nc.clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Contact{}, err
	}

	now := time.Now().UTC()
	c := Contact{CreatedAt: now, UpdatedAt: now}
	nc.bind(&c)
	if err := svc.contacts.Store(ctx, &c); err != nil {
		return Contact{}, errors.Wrap(err, "creating contact")
	}
	return c, nil
}

func (svc *Service) Update(ctx context.Context, id int64, nc NewContact) (Contact, error) {
	nc.clean()
	if err := svc.validate.Struct(nc); err != nil {
		return Contact{}, err
	}
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Contact{}, err
	}

	nc.bind(&c)
	c.UpdatedAt = time.Now().UTC()
	if err = svc.contacts.Store(ctx, &c); err != nil {
		return Contact{}, errors.Wrap(err, "updating contact")
	}
	return c, nil
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	return errors.Wrap(svc.contacts.Delete(ctx, id), "deleting contact")
}
