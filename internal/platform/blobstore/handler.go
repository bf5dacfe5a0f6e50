package blobstore

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/labstack/echo/v4"
)

// FileHandler serves blobs publicly at /files/*. Blob names are unguessable
// (they embed uuids), so the route is not authenticated.
func FileHandler(store Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		name, err := url.PathUnescape(c.Param("*"))
		if err != nil || ValidateName(name) != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid file name")
		}

		rc, info, err := store.Open(c.Request().Context(), name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "File not found")
			}
			return err
		}
		defer rc.Close()

		c.Response().Header().Set("Content-Disposition", `inline; filename="`+path.Base(name)+`"`)
		return c.Stream(http.StatusOK, info.ContentType, rc)
	}
}

// RegisterRoutes mounts the public file route.
func RegisterRoutes(e *echo.Echo, store Store) {
	e.GET("/files/*", FileHandler(store))
}

// ErrNoFile is returned by ReadFormFile when the multipart field is missing.
var ErrNoFile = errors.New("file is required")

// ReadFormFile reads a multipart file field fully into memory and returns it
// with the client-supplied file name.
func ReadFormFile(c echo.Context, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", nil, ErrNoFile
	}
	src, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return "", nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return path.Base(fh.Filename), data, nil
}
