package versions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a domain error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindStore
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	case KindPartial:
		return "partial_failure"
	default:
		return "unknown"
	}
}

// ErrCyclicHierarchy is returned when a parent chain loops back on itself.
var ErrCyclicHierarchy = errors.New("cyclic page hierarchy")

// Error is the single error type crossing operation boundaries.
type Error struct {
	Kind    Kind
	Message string
	// IDs lists the pages a partial failure could not process.
	IDs []int64
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.IDs) > 0 {
		msg += ": " + JoinIDs(e.IDs)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed input.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound reports that id does not resolve to a page.
func NotFound(id int64) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("page %d does not exist", id)}
}

// Store wraps an underlying create/update/delete failure.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var domain *Error
	if errors.As(err, &domain) {
		return err
	}
	return &Error{Kind: KindStore, Message: op, Err: err}
}

// Partial reports a batch in which the listed ids failed.
func Partial(message string, ids []int64) error {
	return &Error{Kind: KindPartial, Message: message, IDs: ids}
}

// KindOf returns the kind of err, KindStore for foreign errors and KindUnknown for nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var domain *Error
	if errors.As(err, &domain) {
		return domain.Kind
	}
	return KindStore
}

// JoinIDs renders ids as "1, 2, 3".
func JoinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
