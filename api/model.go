package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PendingVerification acknowledges a login or registration request. The
// server has sent a code and SubjectRef identifies who must verify it.
type PendingVerification struct {
	SubjectRef string
}

// VerifiedProfile is the role profile returned by a successful verify call.
type VerifiedProfile struct {
	ID          string
	Role        string
	AccessToken string
	DisplayName string
	Email       string
	Phone       string
	// Fields holds every profile field except the access token.
	Fields map[string]any
}

// Clinic is an entry of the clinic directory.
type Clinic struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// PatientRegistration is the body of POST /auth/patient-register.
type PatientRegistration struct {
	HealthCardNumber string  `json:"healthCardNumber"`
	ClinicID         string  `json:"clinicId"`
	FirstName        string  `json:"firstName"`
	LastName         string  `json:"lastName"`
	DateOfBirth      string  `json:"dateOfBirth"`
	Sex              string  `json:"sex"`
	Pronouns         string  `json:"pronouns,omitempty"`
	Email            string  `json:"email"`
	Phone            string  `json:"phone"`
	OTPChannel       Channel `json:"otpChannel"`
}

// AdminRegistration is the body of POST /auth/admin-register.
type AdminRegistration struct {
	Username   string  `json:"username"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	OTPChannel Channel `json:"otpChannel"`
}

type patientLoginRequest struct {
	HealthCardNumber string  `json:"healthCardNumber"`
	OTPChannel       Channel `json:"otpChannel"`
}

type usernameLoginRequest struct {
	Username   string  `json:"username"`
	OTPChannel Channel `json:"otpChannel"`
}

type patientVerifyRequest struct {
	AccessCode string  `json:"accessCode"`
	OTPChannel Channel `json:"otpChannel"`
}

type staffVerifyRequest struct {
	ID         string  `json:"id"`
	AccessCode string  `json:"accessCode"`
	OTPChannel Channel `json:"otpChannel"`
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

var idKeys = []string{"id", "_id", "uid", "userId"}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func decodePending(data json.RawMessage) (PendingVerification, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return PendingVerification{}, ErrMalformedResponse
	}
	ref := firstString(m, idKeys...)
	if ref == "" {
		return PendingVerification{}, fmt.Errorf("%w: missing subject reference", ErrMalformedResponse)
	}
	return PendingVerification{SubjectRef: ref}, nil
}

func decodeProfile(data json.RawMessage) (VerifiedProfile, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return VerifiedProfile{}, ErrMalformedResponse
	}

	p := VerifiedProfile{
		ID:          firstString(m, idKeys...),
		Role:        firstString(m, "role"),
		AccessToken: firstString(m, "accessToken", "token"),
		Email:       firstString(m, "email"),
		Phone:       firstString(m, "phone", "phoneNumber"),
	}
	if p.AccessToken == "" {
		return VerifiedProfile{}, fmt.Errorf("%w: missing access token", ErrMalformedResponse)
	}

	p.DisplayName = firstString(m, "displayName", "name")
	if p.DisplayName == "" {
		p.DisplayName = strings.TrimSpace(firstString(m, "firstName") + " " + firstString(m, "lastName"))
	}
	if p.DisplayName == "" {
		p.DisplayName = firstString(m, "username")
	}

	delete(m, "accessToken")
	delete(m, "token")
	p.Fields = m
	return p, nil
}
