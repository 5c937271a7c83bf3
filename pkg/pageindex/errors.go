package pageindex

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotFound indicates that no row exists for a page. Callers usually
	// react by flagging the relevant subtree with [Index.CheckTree].
	ErrNotFound = errors.New("page not found")

	// ErrConsistency indicates the index contradicts its own bookkeeping,
	// for example a missing parent row or a parent that reports zero
	// children while a row claims it as parent. It is never patched up
	// silently.
	ErrConsistency = errors.New("index consistency error")

	// ErrClosed indicates an operation was attempted on a closed index.
	ErrClosed = errors.New("index closed")

	// ErrInvalidPath indicates a page name failed validation.
	ErrInvalidPath = errors.New("invalid page name")

	// ErrInvalidLink indicates a link target could not be parsed.
	ErrInvalidLink = errors.New("invalid link")

	// ErrPageFailed matches errors confined to one page, such as content
	// that does not parse or a store read that failed. The index itself is
	// intact and the page is retried by the next full walk.
	ErrPageFailed = errors.New("page could not be indexed")
)

// Error is the error type returned by public pageindex APIs that act on a
// single page.
//
// The underlying error message appears first, followed by the page context:
//
//	store: content token: permission denied (page=Foo:Bar page_id=12)
//
// Use [errors.As] to extract the fields and [errors.Is] to test sentinels.
type Error struct {
	// Page is the page name the operation acted on. Empty for the root.
	Page string

	// ID is the row id when one was known.
	ID int64

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (page=X page_id=Y)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	suffix := e.suffix()

	switch {
	case suffix == "":
		return cause
	case cause == "":
		return suffix
	default:
		return cause + " " + suffix
	}
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func (e *Error) suffix() string {
	var parts []string

	if e.Page != "" {
		parts = append(parts, "page="+e.Page)
	}

	if e.ID != 0 {
		parts = append(parts, "page_id="+strconv.FormatInt(e.ID, 10))
	}

	if len(parts) == 0 {
		return ""
	}

	return "(" + strings.Join(parts, " ") + ")"
}

// withContext attaches page context at API boundaries. If err already is an
// *Error, missing fields are filled in place.
func withContext(err error, page string, id int64) error {
	if err == nil {
		return nil
	}

	existing := &Error{}
	if errors.As(err, &existing) {
		if existing.Page == "" && page != "" {
			existing.Page = page
		}

		if existing.ID == 0 && id != 0 {
			existing.ID = id
		}

		return err
	}

	return &Error{Page: page, ID: id, Err: err}
}

// rowFailure marks an error that is confined to processing a single row:
// a store call, a parse, or a consistency check failed. The walker logs it,
// marks the row up to date and moves on. Anything else propagates.
type rowFailure struct {
	id  int64
	err error
}

func (f *rowFailure) Error() string { return f.err.Error() }

func (f *rowFailure) Unwrap() error { return f.err }

func (f *rowFailure) Is(target error) bool { return target == ErrPageFailed }

func failRow(id int64, err error) error {
	if err == nil {
		return nil
	}

	return &rowFailure{id: id, err: err}
}
