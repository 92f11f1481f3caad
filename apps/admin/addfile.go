package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/trezcool/klassenbuch/core/file"
)

// addFile copies the file at path into the shared documents on behalf of the uploader.
func (cli *commandLine) addFile(uploaderEmail, path, name, mimeType string) error {
	ctx := context.Background()

	uploader, err := cli.usrSvc.GetByEmail(ctx, uploaderEmail)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if name == "" {
		name = filepath.Base(path)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(name))
	}

	added, err := cli.files.Add(ctx, uploader.Actor(), file.NewFile{Name: name, MimeType: mimeType}, f)
	if err != nil {
		return err
	}
	fmt.Printf("added file #%d %q (%d bytes)\n", added.ID, added.Name, added.Size)
	return nil
}
