package ddns

import "strconv"

// ErrorKind is a stable code describing why a provider call failed.
//
// Kinds never reach the caller of the update endpoint verbatim;
// they exist so failures can be logged and counted.
type ErrorKind string

const (
	ErrInvalidToken   ErrorKind = "INVALID_TOKEN"
	ErrInvalidInput   ErrorKind = "INVALID_INPUT"
	ErrVerifyFailed   ErrorKind = "CF_VERIFY_FAILED"
	ErrAPIFailed      ErrorKind = "CF_API_FAILED"
	ErrUpdateFailed   ErrorKind = "CF_UPDATE_FAILED"
	ErrTokenNotActive ErrorKind = "TOKEN_NOT_ACTIVE"
	ErrNoRecordFound  ErrorKind = "NO_RECORD_FOUND"
	ErrNetwork        ErrorKind = "NETWORK_ERROR"
)

// Error implements error.
func (k ErrorKind) Error() string { return string(k) }

// httpStatusKind is the kind for a non-2xx provider response.
func httpStatusKind(code int) ErrorKind {
	return ErrorKind("HTTP_" + strconv.Itoa(code))
}

// providerKind keeps diagnostic text reported by the provider.
func providerKind(detail string) ErrorKind {
	return ErrorKind("CF_" + detail)
}

// Result is the envelope returned by every provider call.
//
// Results are built with succeed or fail only,
// so Data is set exactly when Success is true and Error is set exactly when it is false.
type Result[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data,omitempty"`
	Error   ErrorKind `json:"error,omitempty"`
}

func succeed[T any](v T) Result[T] {
	return Result[T]{Success: true, Data: &v}
}

func fail[T any](kind ErrorKind) Result[T] {
	return Result[T]{Error: kind}
}

// Err returns the failure kind as an error, or nil for a successful result.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	return r.Error
}
