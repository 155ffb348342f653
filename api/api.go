package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Channel is the delivery channel for a one-time code.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelSMS || c == ChannelEmail
}

// Endpoint paths, relative to the base URL.
const (
	PathPatientRegister = "/auth/patient-register"
	PathPatientLogin    = "/auth/patient-login"
	PathVerifyPatient   = "/auth/access_code_verification_patient/" // + {uid}
	PathProviderLogin   = "/auth/provider-login"
	PathVerifyProvider  = "/auth/verify-verification-code-provider"
	PathAdminRegister   = "/auth/admin-register"
	PathAdminLogin      = "/auth/admin-login"
	PathVerifyAdmin     = "/auth/verify-access-code-admin"
	PathClinics         = "/clinics/get-all-clinics"
)

// ErrMalformedResponse is returned when a 2xx body cannot be decoded into
// the expected shape.
var ErrMalformedResponse = errors.New("api: malformed response")

// Error is a non-2xx response from the clinic API.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api %s: %d %s", e.Op, e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status, true
	}
	return 0, false
}
