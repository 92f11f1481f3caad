package echoapi

import (
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core"
	"github.com/trezcool/klassenbuch/core/file"
)

func registerFiles(app *echo.Echo, files *file.Service) {
	app.GET("/files/:id", downloadFile(files), requireAuth)
}

func downloadFile(files *file.Service) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return errHttpNotFound
		}

		f, blob, err := files.Open(ctx.Request().Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "opening file")
		}
		defer blob.Close()

		ctype := f.MimeType.String
		if ctype == "" {
			ctype = mime.TypeByExtension(path.Ext(f.Name))
		}
		if ctype == "" {
			ctype = echo.MIMEOctetStream
		}
		h := ctx.Response().Header()
		h.Set(echo.HeaderContentType, ctype)
		h.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))

		http.ServeContent(ctx.Response(), ctx.Request(), f.Name, f.CreatedAt, blob)
		return nil
	}
}
