package shoutbox_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/shoutbox"
	inmemdb "github.com/trezcool/klassenbuch/storage/database/inmem"
	testutil "github.com/trezcool/klassenbuch/tests"
)

type publisherMock struct {
	mu     sync.Mutex
	events []shoutbox.Event
}

func (p *publisherMock) Publish(evt shoutbox.Event) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

var (
	ada   = core.Actor{ID: 1, Name: "Ada"}
	bob   = core.Actor{ID: 2, Name: "Bob"}
	admin = core.Actor{ID: 3, Name: "Admin", IsAdmin: true}
)

func setup() (*shoutbox.Service, *publisherMock) {
	validate, _ := testutil.NewValidator()
	pub := new(publisherMock)
	return shoutbox.NewService(inmemdb.NewTable[shoutbox.Shout](), pub, validate), pub
}

func TestService_PostDelete(t *testing.T) {
	ctx := context.Background()
	svc, pub := setup()

	_, err := svc.Post(ctx, ada, " ")
	assert.Error(t, err)
	assert.Empty(t, pub.events)

	s, err := svc.Post(ctx, ada, " Hi all! ")
	require.NoError(t, err)
	assert.Equal(t, "Hi all!", s.Text)
	require.Len(t, pub.events, 1)
	assert.Equal(t, shoutbox.Event{Type: shoutbox.EventPosted, Shout: s}, pub.events[0])

	assert.Equal(t, core.ErrForbidden, svc.Delete(ctx, bob, s.ID))
	require.NoError(t, svc.Delete(ctx, admin, s.ID))
	require.Len(t, pub.events, 2)
	assert.Equal(t, shoutbox.EventDeleted, pub.events[1].Type)
}

func TestService_ListPrune(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup()

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		_, err := svc.Post(ctx, ada, text)
		require.NoError(t, err)
	}

	texts := func(ss []shoutbox.Shout) []string {
		out := make([]string, len(ss))
		for i, s := range ss {
			out[i] = s.Text
		}
		return out
	}

	shouts, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"five", "four"}, texts(shouts))

	shouts, err = svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, shouts, 5)

	n, err := svc.Prune(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	shouts, err = svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"five", "four", "three"}, texts(shouts))

	n, err = svc.Prune(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListLimit(t *testing.T) {
	tests := []struct {
		in   int64
		want int
	}{
		{in: -1 << 40, want: shoutbox.DefaultListLimit},
		{in: 0, want: shoutbox.DefaultListLimit},
		{in: 1, want: 1},
		{in: 120, want: 120},
		{in: shoutbox.MaxListLimit, want: shoutbox.MaxListLimit},
		{in: shoutbox.MaxListLimit + 1, want: shoutbox.MaxListLimit},
		{in: 1<<32 + 5, want: shoutbox.MaxListLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, shoutbox.ListLimit(tt.in), "ListLimit(%d)", tt.in)
	}
}
