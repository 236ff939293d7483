package errs

import "fmt"

// AuthError: the operation requires an authenticated user and the caller
// isn't one (or isn't the right one).
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "auth: " + e.Reason }

// ValidationError: malformed or missing required input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NotFoundError: the referenced record no longer exists server-side.
type NotFoundError struct {
	Kind string // "item", "swap request", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// InvalidStateError: a swap request is not in the state the attempted
// transition requires.
type InvalidStateError struct {
	RequestID string
	Status    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("swap request %s is %s, not pending", e.RequestID, e.Status)
}

// UploadError: image persistence failed; no item was created.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// LocationUnavailableError: a proximity operation was asked for without a
// coordinate. Retrying is the caller's business.
type LocationUnavailableError struct{}

func (e *LocationUnavailableError) Error() string { return "no coordinate available" }

// StoreError: opaque failure from the document or blob store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
