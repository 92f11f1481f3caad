package rpcapi

import (
	"context"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/rpc"
	"github.com/trezcool/klassenbuch/core/shoutbox"
)

func (api *API) registerShoutbox(m *rpc.Methods) error {
	return registerAll(m, []methodSpec{
		{"shoutbox.list", api.authed(api.listShouts), "Lists the latest messages, newest first; optionally how many.",
			[]rpc.Signature{rpc.Sig(rpc.Array), rpc.Sig(rpc.Array, rpc.Int)}},
		{"shoutbox.post", api.authed(api.postShout), "Posts a message to the shoutbox.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.String)}},
		{"shoutbox.delete", api.authed(api.deleteShout), "Deletes one of your messages.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.Int)}},
	})
}

func (api *API) listShouts(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Shoutbox.List(ctx, shoutbox.ListLimit(p.Int(0)))
}

func (api *API) postShout(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	return api.Shoutbox.Post(ctx, actor, p.String(0))
}

func (api *API) deleteShout(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	if err := api.Shoutbox.Delete(ctx, actor, p.Int(0)); err != nil {
		return nil, err
	}
	return true, nil
}
