// Package apperr defines the structured, user-facing error taxonomy shared by
// the room and game services. Every failure carries an error kind, a message
// safe to show to players, and the HTTP status class the transport should use.
// Expected business-rule rejections (full room, duplicate nickname, ...) are
// "soft": they ship with a 200 status and success=false in the envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	KindInvalidArgument   = "InvalidArgument"
	KindNotFound          = "NotFound"
	KindRoomNotFound      = "RoomNotFound"
	KindPlayerNotFound    = "PlayerNotFound"
	KindGameNotFound      = "GameNotFound"
	KindDuplicateNickname = "DuplicateNickname"
	KindRoomFull          = "RoomFull"
	KindInProgress        = "InProgress"
	KindClosed            = "Closed"
	KindUnavailable       = "Unavailable"
	KindAlreadyInProgress = "AlreadyInProgress"
	KindRoomClosed        = "RoomClosed"
	KindNotInProgress     = "NotInProgress"
	KindInvalidRoomStatus = "InvalidRoomStatus"
	KindInvalidGameStatus = "InvalidGameStatus"
	KindUnpublished       = "Unpublished"
	KindNotReleased       = "NotReleased"
	KindInsufficient      = "InsufficientPlayers"
	KindTooManyPlayers    = "TooManyPlayers"
	KindResourceExhausted = "ResourceExhausted"
	KindMaintenance       = "Maintenance"
	KindInternal          = "Internal"

	KindParentCannotSubmitHint     = "ParentCannotSubmitHint"
	KindOnlyParentCanDetermine     = "OnlyParentCanDetermineAnswer"
	KindBestHintPlayerRequired     = "BestHintPlayerRequired"
	KindInvalidBestHintPlayer      = "InvalidBestHintPlayer"
	KindPlayerDidNotSubmitHint     = "PlayerDidNotSubmitHint"
)

// Error is a failure with a stable kind and an HTTP status class attached.
// Fields carry the ids involved so callers can log them.
type Error struct {
	Kind    string
	Message string
	Status  int
	Fields  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithField attaches a context field and returns the error for chaining.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// WithCause records the underlying error without changing what the caller sees.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func New(kind, message string, status int) *Error {
	return &Error{Kind: kind, Message: message, Status: status}
}

func InvalidArgument(message string) *Error {
	return New(KindInvalidArgument, message, http.StatusBadRequest)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message, http.StatusNotFound)
}

func GameNotFound(message string) *Error {
	return New(KindGameNotFound, message, http.StatusNotFound)
}

func Internal(err error) *Error {
	return New(KindInternal, "an internal server error occurred", http.StatusInternalServerError).WithCause(err)
}

// Soft builds a business-rule rejection: 200 with success=false.
func Soft(kind, message string) *Error {
	return New(kind, message, http.StatusOK)
}

// InvalidGameStatus reports a phase mismatch and echoes the phase actually observed.
func InvalidGameStatus(observed string) *Error {
	return New(KindInvalidGameStatus, "the game is not in the expected phase, ask the host to end the game", http.StatusBadRequest).
		WithField("status", observed)
}

// As extracts an *Error from err, wrapping anything unrecognized as Internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind string) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
