package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits pageSize.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported pageSize to prevent unbounded queries.
	DefaultMaxPageSize = 200
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
	ErrInvalidDate      = errors.New("pagination: invalid date")
)

// Cursor identifies the last document of the previous page. Listings order by
// creation time with the document ID as tiebreaker.
type Cursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// IsZero reports whether the cursor carries no position.
func (c Cursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// Params bundles pagination values extracted from a request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
	Desc      bool
	From      time.Time
	To        time.Time
}

// Options control how FromRequest behaves for a given handler layer.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	DefaultDesc     bool
}

// FromRequest parses pageSize, pageToken, sort and from/to date bounds from
// the request query string.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	values := r.URL.Query()

	pageSize, err := parsePageSize(values.Get("pageSize"), opts)
	if err != nil {
		return Params{}, err
	}

	params := Params{PageSize: pageSize, Desc: opts.DefaultDesc}

	if raw := strings.TrimSpace(values.Get("pageToken")); raw != "" {
		cursor, err := DecodeToken(raw)
		if err != nil {
			return Params{}, err
		}
		params.PageToken = raw
		params.Cursor = cursor
	}

	switch strings.ToLower(strings.TrimSpace(values.Get("sort"))) {
	case "", "default":
	case "asc":
		params.Desc = false
	case "desc":
		params.Desc = true
	default:
		return Params{}, fmt.Errorf("%w: sort must be asc or desc", ErrInvalidPageToken)
	}

	if params.From, err = parseDate(values.Get("from")); err != nil {
		return Params{}, err
	}
	if params.To, err = parseDate(values.Get("to")); err != nil {
		return Params{}, err
	}
	if !params.From.IsZero() && !params.To.IsZero() && params.To.Before(params.From) {
		return Params{}, fmt.Errorf("%w: to precedes from", ErrInvalidDate)
	}

	return params, nil
}

func parsePageSize(raw string, opts Options) (int, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	defaultPageSize := opts.DefaultPageSize
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	if defaultPageSize > maxPageSize {
		defaultPageSize = maxPageSize
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultPageSize, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
	}
	if value > maxPageSize {
		value = maxPageSize
	}
	return value, nil
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}
