package error

// GenericError is implemented by errors that carry an API error code and an
// HTTP status, so the recovery middleware can translate them without a
// type switch per concrete error.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
