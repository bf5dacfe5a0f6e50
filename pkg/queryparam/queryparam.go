// Package queryparam parses optional typed query parameters. An absent or
// empty parameter yields nil; a malformed one yields an error naming it.
package queryparam

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// dateLayouts are tried in order after RFC 3339.
var dateLayouts = []string{"2006-01-02T15:04:05", "2006-01-02"}

func UUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a valid UUID", name)
	}
	return &id, nil
}

// Time accepts RFC 3339, a timestamp without zone (read as UTC) or a plain
// date.
func Time(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD) or an RFC 3339 timestamp", name)
}

func Bool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a boolean", name)
	}
	return &b, nil
}
