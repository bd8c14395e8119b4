package backend

import "fmt"

// Error is the normalized failure of a backend call: a non-2xx status, a
// transport failure, an undecodable body or a response with success=false.
type Error struct {
	// Op is the operation name, e.g. "activate".
	Op string
	// StatusCode is zero for transport failures.
	StatusCode int
	// Message is safe to show to the actor: the backend's own error text when
	// it sent one, otherwise the per-operation fallback.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail is the full diagnostic form used in logs.
func (e *Error) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %s: %v", e.Op, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// fallbackMessages are shown when the backend gives no usable error text.
var fallbackMessages = map[string]string{
	opCheckAccount:   "Could not check for an existing account. Please try again later.",
	opRegister:       "Registration failed. Please try again later.",
	opActivate:       "Activation failed. Please try again later.",
	opAddDuration:    "Failed to add duration. Please try again later.",
	opRemoveDuration: "Failed to remove duration. Please try again later.",
	opResetAccount:   "Failed to reset account. Please try again later.",
	opResetHWID:      "HWID reset failed. Please try again later.",
	opUserInfo:       "Failed to get user info. Please try again later.",
	opListUsers:      "Failed to retrieve user list. Please try again later.",
	opSetNote:        "Failed to set note. Please try again later.",
	opResetAllUsers:  "Failed to reset users. Please try again later.",
}

func fallback(op string) string {
	if msg, ok := fallbackMessages[op]; ok {
		return msg
	}
	return "The account service is unavailable. Please try again later."
}
