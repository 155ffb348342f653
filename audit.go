package clinicAuth

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/clinicAuth/api"
)

const (
	auditEventIdentityResolved      = "identity_resolved"
	auditEventRegistrationSubmitted = "registration_submitted"
	auditEventCodeDispatched        = "code_dispatched"
	auditEventCodeVerified          = "code_verified"
	auditEventCodeRejected          = "code_rejected"
	auditEventFlowCancelled         = "flow_cancelled"
	auditEventSessionRestored       = "session_restored"
	auditEventSessionInvalidated    = "session_invalidated"
	auditEventLogout                = "logout"
	auditEventProfileUpdated        = "profile_updated"
)

// AuditErrorCode is the coarse error class recorded on failed audit events.
// Raw error strings are never recorded.
type AuditErrorCode string

const (
	auditErrValidation        AuditErrorCode = "validation"
	auditErrInvalidTransition AuditErrorCode = "invalid_transition"
	auditErrBusy              AuditErrorCode = "busy"
	auditErrStale             AuditErrorCode = "stale"
	auditErrCooldown          AuditErrorCode = "cooldown"
	auditErrCodeRejected      AuditErrorCode = "code_rejected"
	auditErrUnsupported       AuditErrorCode = "registration_unsupported"
	auditErrNotAuthenticated  AuditErrorCode = "not_authenticated"
	auditErrUnauthorized      AuditErrorCode = "unauthorized"
	auditErrClientError       AuditErrorCode = "client_error"
	auditErrServerError       AuditErrorCode = "server_error"
	auditErrMalformed         AuditErrorCode = "malformed_response"
	auditErrCanceled          AuditErrorCode = "canceled"
	auditErrNetwork           AuditErrorCode = "network"
)

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	role Role,
	subjectID string,
	challengeID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   c.now().UTC(),
		EventType:   eventType,
		Role:        string(role),
		SubjectID:   subjectID,
		ChallengeID: challengeID,
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	c.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrInvalidTransition):
		return auditErrInvalidTransition
	case errors.Is(err, ErrBusy):
		return auditErrBusy
	case errors.Is(err, ErrStale):
		return auditErrStale
	case errors.Is(err, ErrCooldown):
		return auditErrCooldown
	case errors.Is(err, ErrCodeRejected):
		return auditErrCodeRejected
	case errors.Is(err, ErrRegistrationUnsupported):
		return auditErrUnsupported
	case errors.Is(err, ErrNotAuthenticated):
		return auditErrNotAuthenticated
	case errors.Is(err, api.ErrMalformedResponse):
		return auditErrMalformed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	}

	if status, ok := api.StatusOf(err); ok {
		switch {
		case status == http.StatusUnauthorized:
			return auditErrUnauthorized
		case status >= 500:
			return auditErrServerError
		default:
			return auditErrClientError
		}
	}
	return auditErrNetwork
}
