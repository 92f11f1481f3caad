package rpcapi

import (
	"context"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/rpc"
	"github.com/trezcool/klassenbuch/core/task"
)

func (api *API) registerTask(m *rpc.Methods) error {
	return registerAll(m, []methodSpec{
		{"task.list", api.authed(api.listTasks), "Lists open tasks by due date; pass true to include done ones.",
			[]rpc.Signature{rpc.Sig(rpc.Array), rpc.Sig(rpc.Array, rpc.Boolean)}},
		{"task.get", api.authed(api.getTask), "Returns a task.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int)}},
		{"task.add", api.authed(api.addTask), "Creates a task: {subject, title, description, due_date}.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Struct)}},
		{"task.update", api.authed(api.updateTask), "Updates the given fields of a task.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int, rpc.Struct)}},
		{"task.setDone", api.authed(api.setTaskDone), "Marks a task done or open.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int, rpc.Boolean)}},
		{"task.delete", api.authed(api.deleteTask), "Deletes a task and its comments.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.Int)}},
	})
}

func (api *API) listTasks(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Tasks.List(ctx, p.Bool(0))
}

func (api *API) getTask(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Tasks.Get(ctx, p.Int(0))
}

func (api *API) addTask(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	var nt task.NewTask
	if err := api.decode(p, 0, &nt); err != nil {
		return nil, err
	}
	return api.Tasks.Create(ctx, actor, nt)
}

func (api *API) updateTask(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	var ut task.UpdateTask
	if err := api.decode(p, 1, &ut); err != nil {
		return nil, err
	}
	return api.Tasks.Update(ctx, p.Int(0), ut)
}

func (api *API) setTaskDone(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Tasks.SetDone(ctx, p.Int(0), p.Bool(1))
}

func (api *API) deleteTask(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	id := p.Int(0)
	if _, err := api.Tasks.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := api.Comments.DeleteForTask(ctx, id); err != nil {
		return nil, err
	}
	if err := api.Tasks.Delete(ctx, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (api *API) registerComment(m *rpc.Methods) error {
	return registerAll(m, []methodSpec{
		{"comment.list", api.authed(api.listComments), "Lists the comments of a task, oldest first.",
			[]rpc.Signature{rpc.Sig(rpc.Array, rpc.Int)}},
		{"comment.add", api.authed(api.addComment), "Comments on a task.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int, rpc.String)}},
		{"comment.delete", api.authed(api.deleteComment), "Deletes one of your comments.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.Int)}},
	})
}

func (api *API) listComments(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Comments.ListForTask(ctx, p.Int(0))
}

func (api *API) addComment(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	return api.Comments.Add(ctx, actor, p.Int(0), p.String(1))
}

func (api *API) deleteComment(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	if err := api.Comments.Delete(ctx, actor, p.Int(0)); err != nil {
		return nil, err
	}
	return true, nil
}
