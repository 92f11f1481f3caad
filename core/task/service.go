package task

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
)

// RecipientLister returns who gets notified of new tasks.
type RecipientLister interface {
	Recipients(ctx context.Context) ([]mail.Address, error)
}

type Service struct {
	tasks      core.Table[Task]
	recipients RecipientLister
	mailSvc    core.EmailService
	validate   *validator.Validate
	logger     core.Logger
	notify     bool
}

func NewService(
	tasks core.Table[Task],
	recipients RecipientLister,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		tasks:      tasks,
		recipients: recipients,
		mailSvc:    mailSvc,
		validate:   validate,
		logger:     logger,
		notify:     conf.NotifyNewTasks,
	}
}

// List returns the tasks by due date, undated ones last. Done tasks are only included on demand.
func (svc *Service) List(ctx context.Context, includeDone bool) ([]Task, error) {
	q := core.Query{
		Order: []core.DBOrdering{{Field: "due_date", Ascending: true}, {Field: "id", Ascending: true}},
	}
	if !includeDone {
		q.Where = core.Eq("done", false)
	}
	tasks, err := svc.tasks.Find(ctx, q)
	return tasks, errors.Wrap(err, "listing tasks")
}

func (svc *Service) Get(ctx context.Context, id int64) (Task, error) {
	t, err := svc.tasks.Load(ctx, id)
	return t, errors.Wrap(err, "loading task")
}

func (svc *Service) Create(ctx context.Context, author core.Actor, nt NewTask) (Task, error) {
	nt.clean()
	if err := svc.validate.Struct(nt); err != nil {
		return Task{}, err
	}

	now := time.Now().UTC()
	t := Task{
		Subject:     nt.Subject,
		Title:       nt.Title,
		Description: nt.Description,
		DueDate:     parseDueDate(nt.DueDate),
		AuthorID:    author.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := svc.tasks.Store(ctx, &t); err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}

	if svc.notify {
		svc.sendNewTaskMail(ctx, author, t)
	}
	return t, nil
}

func (svc *Service) sendNewTaskMail(ctx context.Context, author core.Actor, t Task) {
	addrs, err := svc.recipients.Recipients(ctx)
	if err != nil {
		svc.logger.Error("listing task recipients", err)
		return
	}

	bcc := make([]mail.Address, 0, len(addrs))
	for _, addr := range addrs {
		if addr.Address != author.Email {
			bcc = append(bcc, addr)
		}
	}
	if len(bcc) == 0 {
		return
	}

	var dueDate string
	if t.DueDate.Valid {
		dueDate = t.DueDate.Time.Format(dateLayout)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		Bcc:          bcc,
		Subject:      "New task: " + t.Subject,
		TemplateName: "new_task",
		TemplateData: map[string]interface{}{
			"Subject":     t.Subject,
			"Title":       t.Title,
			"DueDate":     dueDate,
			"Description": t.Description,
		},
	})
}

func (svc *Service) Update(ctx context.Context, id int64, ut UpdateTask) (Task, error) {
	ut.clean()
	if err := svc.validate.Struct(ut); err != nil {
		return Task{}, err
	}
	t, err := svc.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}

	if ut.Subject != nil {
		t.Subject = *ut.Subject
	}
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.DueDate != nil {
		t.DueDate = parseDueDate(*ut.DueDate)
	}
	if err = svc.store(ctx, &t); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (svc *Service) SetDone(ctx context.Context, id int64, done bool) (Task, error) {
	t, err := svc.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}
	t.Done = done
	if err = svc.store(ctx, &t); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (svc *Service) store(ctx context.Context, t *Task) error {
	t.UpdatedAt = time.Now().UTC()
	return errors.Wrap(svc.tasks.Store(ctx, t), "updating task")
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	return errors.Wrap(svc.tasks.Delete(ctx, id), "deleting task")
}
