package graphql

import (
	"github.com/c360/bookshelf/errors"
)

// Error codes surfaced in GraphQL error extensions
const (
	codeNotAuthenticated  = "NOT_AUTHENTICATED"
	codeBadUserInput      = "BAD_USER_INPUT"
	codeWrongCredentials  = "WRONG_CREDENTIALS"
	codeDanglingReference = "DANGLING_REFERENCE"
	codeUnauthenticated   = "UNAUTHENTICATED"
	codeInternal          = "INTERNAL_ERROR"
)

// Error is a resolver error carrying a machine-readable code in its
// GraphQL extensions.
type Error struct {
	Message string
	Code    string
	Extra   map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Extensions returns the GraphQL error extensions
func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.Code}
	for k, v := range e.Extra {
		ext[k] = v
	}
	return ext
}

func errNotAuthenticated() *Error {
	return &Error{
		Message: "not authenticated",
		Code:    codeNotAuthenticated,
	}
}

func errInvalidInput(err error, invalidArgs map[string]interface{}) *Error {
	return &Error{
		Message: err.Error(),
		Code:    codeBadUserInput,
		Extra:   map[string]interface{}{"invalidArgs": invalidArgs},
	}
}

// errWrongCredentials is deliberately generic: it must not reveal whether
// the username or the password was wrong.
func errWrongCredentials() *Error {
	return &Error{
		Message: "wrong credentials",
		Code:    codeWrongCredentials,
	}
}

func errDanglingReference(authorID string) *Error {
	return &Error{
		Message: "book references a missing author",
		Code:    codeDanglingReference,
		Extra:   map[string]interface{}{"author": authorID},
	}
}

func errInternal(operation string) *Error {
	return &Error{
		Message: "internal server error",
		Code:    codeInternal,
		Extra:   map[string]interface{}{"operation": operation},
	}
}

// writeError maps a store/domain failure on a write path to a resolver
// error: validation and uniqueness violations surface as invalid input
// with the offending arguments attached, everything else is internal.
func writeError(err error, operation string, invalidArgs map[string]interface{}) *Error {
	if errors.IsInvalid(err) {
		return errInvalidInput(err, invalidArgs)
	}
	return errInternal(operation)
}
