package rpcapi

import (
	"context"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/contact"
	"github.com/trezcool/klassenbuch/core/rpc"
)

func (api *API) registerContact(m *rpc.Methods) error {
	return registerAll(m, []methodSpec{
		{"contact.list", api.authed(api.listContacts), "Lists the address book by name.",
			[]rpc.Signature{rpc.Sig(rpc.Array)}},
		{"contact.get", api.authed(api.getContact), "Returns a contact.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int)}},
		{"contact.add", api.authed(api.addContact), "Adds a contact: {name, email, phone, address, notes}.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Struct)}},
		{"contact.update", api.authed(api.updateContact), "Replaces a contact.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int, rpc.Struct)}},
		{"contact.delete", api.authed(api.deleteContact), "Deletes a contact.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.Int)}},
	})
}

func (api *API) listContacts(ctx context.Context, _ core.Actor, _ rpc.Params) (interface{}, error) {
	return api.Contacts.List(ctx)
}

func (api *API) getContact(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Contacts.Get(ctx, p.Int(0))
}

func (api *API) addContact(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	var nc contact.NewContact
	if err := api.decode(p, 0, &nc); err != nil {
		return nil, err
	}
	return api.Contacts.Create(ctx, nc)
}

func (api *API) updateContact(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	var nc contact.NewContact
	if err := api.decode(p, 1, &nc); err != nil {
		return nil, err
	}
	return api.Contacts.Update(ctx, p.Int(0), nc)
}

func (api *API) deleteContact(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	if err := api.Contacts.Delete(ctx, p.Int(0)); err != nil {
		return nil, err
	}
	return true, nil
}

func (api *API) registerFile(m *rpc.Methods) error {
	return registerAll(m, []methodSpec{
		{"file.list", api.authed(api.listFiles), "Lists the shared files, newest first.",
			[]rpc.Signature{rpc.Sig(rpc.Array)}},
		{"file.get", api.authed(api.getFile), "Returns a file's metadata. Download it from /files/{id}.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int)}},
		{"file.rename", api.authed(api.renameFile), "Renames one of your files.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int, rpc.String)}},
		{"file.delete", api.authed(api.deleteFile), "Deletes one of your files.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.Int)}},
	})
}

func (api *API) listFiles(ctx context.Context, _ core.Actor, _ rpc.Params) (interface{}, error) {
	return api.Files.List(ctx)
}

func (api *API) getFile(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Files.Get(ctx, p.Int(0))
}

func (api *API) renameFile(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	return api.Files.Rename(ctx, actor, p.Int(0), p.String(1))
}

func (api *API) deleteFile(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	if err := api.Files.Delete(ctx, actor, p.Int(0)); err != nil {
		return nil, err
	}
	return true, nil
}

func (api *API) registerGallery(m *rpc.Methods) error {
	return registerAll(m, []methodSpec{
		{"gallery.listAlbums", api.authed(api.listAlbums), "Lists the albums, newest first.",
			[]rpc.Signature{rpc.Sig(rpc.Array)}},
		{"gallery.addAlbum", api.authed(api.addAlbum), "Creates an album with the given title.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.String)}},
		{"gallery.deleteAlbum", api.authed(api.deleteAlbum), "Deletes one of your albums with its pictures.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.Int)}},
		{"gallery.listPictures", api.authed(api.listPictures), "Lists the pictures of an album.",
			[]rpc.Signature{rpc.Sig(rpc.Array, rpc.Int)}},
		{"gallery.setCaption", api.authed(api.setCaption), "Sets the caption of one of your pictures.",
			[]rpc.Signature{rpc.Sig(rpc.Struct, rpc.Int, rpc.String)}},
		{"gallery.deletePicture", api.authed(api.deletePicture), "Deletes one of your pictures.",
			[]rpc.Signature{rpc.Sig(rpc.Boolean, rpc.Int)}},
	})
}

func (api *API) listAlbums(ctx context.Context, _ core.Actor, _ rpc.Params) (interface{}, error) {
	return api.Gallery.ListAlbums(ctx)
}

func (api *API) addAlbum(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	return api.Gallery.AddAlbum(ctx, actor, p.String(0))
}

func (api *API) deleteAlbum(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	if err := api.Gallery.DeleteAlbum(ctx, actor, p.Int(0)); err != nil {
		return nil, err
	}
	return true, nil
}

func (api *API) listPictures(ctx context.Context, _ core.Actor, p rpc.Params) (interface{}, error) {
	return api.Gallery.ListPictures(ctx, p.Int(0))
}

func (api *API) setCaption(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	return api.Gallery.SetCaption(ctx, actor, p.Int(0), p.String(1))
}

func (api *API) deletePicture(ctx context.Context, actor core.Actor, p rpc.Params) (interface{}, error) {
	if err := api.Gallery.DeletePicture(ctx, actor, p.Int(0)); err != nil {
		return nil, err
	}
	return true, nil
}
