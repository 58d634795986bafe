package error

import "net/http"

// ConflictError reports an operation that cannot start because another
// exclusive operation is already in progress for the same principal.
type ConflictError string

func (err ConflictError) Error() string {
	return string(err)
}

func (err ConflictError) ErrCode() string {
	return "OPERATION_IN_PROGRESS"
}

func (err ConflictError) StatusCode() int {
	return http.StatusConflict
}
