package task

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klassenbuch/core"
)

const dateLayout = "2006-01-02"

type Task struct {
	ID          int64     `db:"id" json:"id"`
	Subject     string    `db:"subject" json:"subject"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     null.Time `db:"due_date" json:"due_date"`
	Done        bool      `db:"done" json:"done"`
	AuthorID    int64     `db:"author_id" json:"author_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"` // UTC
}

var _ core.Record = (*Task)(nil)

func (*Task) TableName() string { return "tasks" }

func (*Task) Columns() []string {
	return []string{"subject", "title", "description", "due_date", "done", "author_id", "created_at", "updated_at"}
}

func (t *Task) PK() int64 { return t.ID }

func (t *Task) SetPK(id int64) { t.ID = id }

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Subject     string `json:"subject" validate:"required,notblank,max=64"`
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description"`
	DueDate     string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (nt *NewTask) clean() {
	nt.Subject = core.CleanString(nt.Subject)
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	nt.DueDate = core.CleanString(nt.DueDate)
}

// UpdateTask defines what information may be provided to modify an existing Task.
// All fields are optional; an empty due_date clears it.
type UpdateTask struct {
	Subject     *string `json:"subject" validate:"omitempty,notblank,max=64"`
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (ut *UpdateTask) clean() {
	for _, s := range []*string{ut.Subject, ut.Title, ut.Description, ut.DueDate} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
}

func parseDueDate(s string) null.Time {
	if s == "" {
		return null.Time{}
	}
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return null.Time{}
	}
	return null.TimeFrom(d)
}
