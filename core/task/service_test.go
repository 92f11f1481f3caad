package task_test

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/task"
	emailsvc "github.com/trezcool/klassenbuch/services/email"
	inmemdb "github.com/trezcool/klassenbuch/storage/database/inmem"
	testutil "github.com/trezcool/klassenbuch/tests"
)

type recipientsStub []mail.Address

func (r recipientsStub) Recipients(context.Context) ([]mail.Address, error) { return r, nil }

var (
	ada = core.Actor{ID: 1, Name: "Ada", Email: "ada@example.com"}
	bob = core.Actor{ID: 2, Name: "Bob", Email: "bob@example.com"}
)

func setup(t *testing.T, notify bool) (*task.Service, *emailsvc.ConsoleServiceMock) {
	conf := testutil.NewConfig()
	conf.NotifyNewTasks = notify
	logger := new(testutil.Logger)
	core.ParseEmailTemplates(conf, logger)

	validate, _ := testutil.NewValidator()
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)
	recipients := recipientsStub{{Name: ada.Name, Address: ada.Email}, {Name: bob.Name, Address: bob.Email}}
	return task.NewService(inmemdb.NewTable[task.Task](), recipients, mailer, validate, logger, conf), mailer
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		svc, _ := setup(t, false)
		_, err := svc.Create(ctx, ada, task.NewTask{Subject: " ", Title: "x", DueDate: "10.03.2024"})
		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Len(t, verrs, 2)
	})

	t.Run("notifies the class except the author", func(t *testing.T) {
		svc, mailer := setup(t, true)
		tk, err := svc.Create(ctx, ada, task.NewTask{Subject: "Maths", Title: " Exercises p. 12 ", DueDate: "2024-03-10"})
		require.NoError(t, err)

		assert.NotZero(t, tk.ID)
		assert.Equal(t, "Exercises p. 12", tk.Title)
		assert.Equal(t, ada.ID, tk.AuthorID)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), tk.DueDate.Time)

		sent := mailer.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, []mail.Address{{Name: bob.Name, Address: bob.Email}}, sent[0].Bcc)
		assert.Contains(t, sent[0].TextContent, "Due: 2024-03-10")
	})

	t.Run("notifications off", func(t *testing.T) {
		svc, mailer := setup(t, false)
		_, err := svc.Create(ctx, ada, task.NewTask{Subject: "Maths", Title: "Exercises"})
		require.NoError(t, err)
		assert.Empty(t, mailer.SentMessages())
	})
}

func TestService_ListUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t, false)

	later, err := svc.Create(ctx, ada, task.NewTask{Subject: "Maths", Title: "Later", DueDate: "2024-03-20"})
	require.NoError(t, err)
	sooner, err := svc.Create(ctx, bob, task.NewTask{Subject: "Physics", Title: "Sooner", DueDate: "2024-03-01"})
	require.NoError(t, err)
	undated, err := svc.Create(ctx, bob, task.NewTask{Subject: "Art", Title: "Undated"})
	require.NoError(t, err)

	titles := func(ts []task.Task) []string {
		out := make([]string, len(ts))
		for i, tk := range ts {
			out[i] = tk.Title
		}
		return out
	}

	tasks, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sooner", "Later", "Undated"}, titles(tasks))

	_, err = svc.SetDone(ctx, sooner.ID, true)
	require.NoError(t, err)

	tasks, err = svc.List(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Later", "Undated"}, titles(tasks))

	tasks, err = svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	title, noDate := "Renamed", ""
	updated, err := svc.Update(ctx, later.ID, task.UpdateTask{Title: &title, DueDate: &noDate})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Maths", updated.Subject)
	assert.False(t, updated.DueDate.Valid)

	blank := "   "
	_, err = svc.Update(ctx, later.ID, task.UpdateTask{Subject: &blank})
	assert.Error(t, err)

	require.NoError(t, svc.Delete(ctx, undated.ID))
	_, err = svc.Get(ctx, undated.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(ctx, undated.ID), core.ErrNotFound))
}
