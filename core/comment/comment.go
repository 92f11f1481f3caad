package comment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/task"
)

type Comment struct {
	ID        int64     `db:"id" json:"id"`
	TaskID    int64     `db:"task_id" json:"task_id"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
}

var _ core.Record = (*Comment)(nil)

func (*Comment) TableName() string { return "comments" }

func (*Comment) Columns() []string { return []string{"task_id", "author_id", "text", "created_at"} }

func (c *Comment) PK() int64 { return c.ID }

func (c *Comment) SetPK(id int64) { c.ID = id }

type NewComment struct {
	Text string `json:"text" validate:"required,notblank,max=2000"`
}

type Service struct {
	comments core.Table[Comment]
	tasks    core.Table[task.Task]
	validate *validator.Validate
}

func NewService(comments core.Table[Comment], tasks core.Table[task.Task], validate *validator.Validate) *Service {
	return &Service{comments: comments, tasks: tasks, validate: validate}
}

// ListForTask returns the comments of a task, oldest first.
func (svc *Service) ListForTask(ctx context.Context, taskID int64) ([]Comment, error) {
	if _, err := svc.tasks.Load(ctx, taskID); err != nil {
		return nil, errors.Wrap(err, "loading task")
	}
	cmts, err := svc.comments.Find(ctx, core.Query{
		Where: core.Eq("task_id", taskID),
		Order: []core.DBOrdering{{Field: "created_at", Ascending: true}, {Field: "id", Ascending: true}},
	})
	return cmts, errors.Wrap(err, "listing comments")
}

func (svc *Service) Add(ctx context.Context, author core.Actor, taskID int64, text string) (Comment, error) {
	nc := NewComment{Text: core.CleanString(text)}
	if err := svc.validate.Struct(nc); err != nil {
		return Comment{}, err
	}
	if _, err := svc.tasks.Load(ctx, taskID); err != nil {
		return Comment{}, errors.Wrap(err, "loading task")
	}

	c := Comment{
		TaskID:    taskID,
		AuthorID:  author.ID,
		Text:      nc.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := svc.comments.Store(ctx, &c); err != nil {
		return Comment{}, errors.Wrap(err, "adding comment")
	}
	return c, nil
}

// Delete removes a comment. Only its author or an admin may do so.
func (svc *Service) Delete(ctx context.Context, actor core.Actor, id int64) error {
	c, err := svc.comments.Load(ctx, id)
	if err != nil {
		return errors.Wrap(err, "loading comment")
	}
	if !actor.CanModify(c.AuthorID) {
		return core.ErrForbidden
	}
	return errors.Wrap(svc.comments.Delete(ctx, id), "deleting comment")
}

// DeleteForTask removes all comments of a task.
func (svc *Service) DeleteForTask(ctx context.Context, taskID int64) error {
	cmts, err := svc.comments.Find(ctx, core.Query{Where: core.Eq("task_id", taskID)})
	if err != nil {
		return errors.Wrap(err, "listing comments")
	}
	ids := make([]int64, len(cmts))
	for i, c := range cmts {
		ids[i] = c.ID
	}
	return errors.Wrap(svc.comments.Delete(ctx, ids...), "deleting comments")
}
