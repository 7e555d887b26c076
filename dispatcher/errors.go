package dispatcher

import (
	"errors"
	"fmt"

	"github.com/truemediaorg/mentionbot/bilibili"
)

type ErrorKind string

const (
	ErrorKindUnauthenticated ErrorKind = "unauthenticated"
	ErrorKindAccountDisabled ErrorKind = "account_disabled"
	ErrorKindRateLimited     ErrorKind = "rate_limited"
	ErrorKindBlocked         ErrorKind = "blocked"
	ErrorKindContentDeleted  ErrorKind = "content_deleted"
	ErrorKindUnsupported     ErrorKind = "unsupported"
	ErrorKindUnknown         ErrorKind = "unknown"
)

// ErrorClass groups error kinds by how a caller should react.
type ErrorClass string

const (
	// Worth trying again later
	ErrorClassTransient ErrorClass = "transient"
	// The account or session is unusable until an operator steps in
	ErrorClassFatal ErrorClass = "fatal"
	// The target content cannot be replied to
	ErrorClassContent ErrorClass = "content"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrAccountDisabled = errors.New("account disabled")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrBlocked         = errors.New("request blocked")
	ErrContentDeleted  = errors.New("comment was deleted")
	ErrUnsupported     = errors.New("cannot reply to this comment")
	ErrUnknown         = errors.New("reply failed")
)

var codeKinds = map[int]ErrorKind{
	bilibili.CodeNotLoggedIn:       ErrorKindUnauthenticated,
	bilibili.CodeAccountDisabled:   ErrorKindAccountDisabled,
	bilibili.CodeRateLimited:       ErrorKindRateLimited,
	bilibili.CodeRequestBlocked:    ErrorKindBlocked,
	bilibili.CodeCommentDeleted:    ErrorKindContentDeleted,
	bilibili.CodeReplyNotPermitted: ErrorKindUnsupported,
}

var kindSentinels = map[ErrorKind]error{
	ErrorKindUnauthenticated: ErrUnauthenticated,
	ErrorKindAccountDisabled: ErrAccountDisabled,
	ErrorKindRateLimited:     ErrRateLimited,
	ErrorKindBlocked:         ErrBlocked,
	ErrorKindContentDeleted:  ErrContentDeleted,
	ErrorKindUnsupported:     ErrUnsupported,
	ErrorKindUnknown:         ErrUnknown,
}

// Error is a reply the platform refused.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
}

// ErrorFromCode maps a non-zero response code onto the error taxonomy.
// Codes without a mapping become ErrorKindUnknown and keep their code and message.
func ErrorFromCode(code int, message string) *Error {
	kind, ok := codeKinds[code]
	if !ok {
		kind = ErrorKindUnknown
	}
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: code=%d, message=%s", kindSentinels[e.Kind], e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func (e *Error) Class() ErrorClass {
	switch e.Kind {
	case ErrorKindRateLimited, ErrorKindBlocked, ErrorKindUnknown:
		return ErrorClassTransient
	case ErrorKindUnauthenticated, ErrorKindAccountDisabled:
		return ErrorClassFatal
	default:
		return ErrorClassContent
	}
}
