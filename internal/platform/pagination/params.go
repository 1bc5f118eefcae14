package pagination

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize applies when the client does not specify a limit.
	DefaultPageSize = 20
	// MaxPageSize caps client-supplied limits.
	MaxPageSize = 100
)

var (
	// ErrInvalidPageSize indicates a non-numeric or out-of-range limit parameter.
	ErrInvalidPageSize = errors.New("pagination: invalid page size")
	// ErrInvalidPageToken indicates a malformed page token.
	ErrInvalidPageToken = errors.New("pagination: invalid page token")
)

// Params carries the parsed pagination inputs of a list request.
type Params struct {
	PageSize int
	Cursor   Cursor
}

// FromRequest parses limit and pageToken query parameters.
func FromRequest(r *http.Request) (Params, error) {
	params := Params{PageSize: DefaultPageSize}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Params{}, ErrInvalidPageSize
		}
		if size > MaxPageSize {
			size = MaxPageSize
		}
		params.PageSize = size
	}

	cursor, err := DecodeToken(r.URL.Query().Get("pageToken"))
	if err != nil {
		return Params{}, err
	}
	params.Cursor = cursor
	return params, nil
}
