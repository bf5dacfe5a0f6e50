package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	fallbackLimit int64 = 1 << 20
	// multipart boundaries and form fields around an uploaded file
	multipartOverhead int64 = 64 << 10
)

// BodyLimit caps request bodies at defaultLimit, or at uploadLimit for the
// multipart requests that carry record uploads. Limits use ParseLimit syntax.
func BodyLimit(defaultLimit, uploadLimit string) echo.MiddlewareFunc {
	jsonMax := ParseLimit(defaultLimit)
	uploadMax := ParseLimit(uploadLimit) + multipartOverhead

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := jsonMax
			if isMultipart(req) {
				limit = uploadMax
			}
			if req.ContentLength > limit {
				return tooLarge(limit)
			}
			req.Body = &cappedBody{rc: req.Body, left: limit, limit: limit}
			return next(c)
		}
	}
}

func isMultipart(req *http.Request) bool {
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// cappedBody fails reads once more than limit bytes have been consumed, for
// chunked bodies that declare no Content-Length.
type cappedBody struct {
	rc    io.ReadCloser
	left  int64
	limit int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, tooLarge(b.limit)
	}
	// one byte of slack tells "exactly at the limit" apart from "over it"
	if room := b.left + 1; int64(len(p)) > room {
		p = p[:room]
	}
	n, err := b.rc.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return 0, tooLarge(b.limit)
	}
	return n, err
}

func (b *cappedBody) Close() error { return b.rc.Close() }

func tooLarge(limit int64) error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Request body exceeds maximum allowed size of %d bytes", limit))
}

var sizeUnits = []struct {
	suffix string
	shift  uint
}{{"G", 30}, {"M", 20}, {"K", 10}}

// ParseLimit reads sizes such as "512K", "10M", "10mb" or "1G"; a bare
// number is bytes. Anything unparseable or non-positive yields 1 MiB.
func ParseLimit(s string) int64 {
	s = strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "B")
	var shift uint
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, shift = strings.TrimSuffix(s, u.suffix), u.shift
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallbackLimit
	}
	return n << shift
}
