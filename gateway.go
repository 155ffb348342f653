package clinicAuth

import (
	"context"
	"fmt"

	"github.com/MrEthical07/clinicAuth/api"
	"github.com/MrEthical07/clinicAuth/internal/flows"
	"github.com/MrEthical07/clinicAuth/session"
)

// gateway binds each role to its login, registration and verify endpoints.
type gateway struct {
	api     *api.Client
	rejects map[int]struct{}
}

func newGateway(client *api.Client, rejectStatuses []int) *gateway {
	rejects := make(map[int]struct{}, len(rejectStatuses))
	for _, s := range rejectStatuses {
		rejects[s] = struct{}{}
	}
	return &gateway{api: client, rejects: rejects}
}

// Probe issues the role login call. It satisfies resolver.Prober.
func (g *gateway) Probe(ctx context.Context, role session.Role, lookupKey string, ch api.Channel) (api.PendingVerification, error) {
	return g.login(ctx, role, lookupKey, ch)
}

func (g *gateway) login(ctx context.Context, role session.Role, lookupKey string, ch api.Channel) (api.PendingVerification, error) {
	switch role {
	case session.RolePatient:
		return g.api.PatientLogin(ctx, lookupKey, ch)
	case session.RoleProvider:
		return g.api.ProviderLogin(ctx, lookupKey, ch)
	case session.RoleAdmin:
		return g.api.AdminLogin(ctx, lookupKey, ch)
	default:
		return api.PendingVerification{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
}

func (g *gateway) verify(ctx context.Context, role session.Role, subjectRef, code string, ch api.Channel) (api.VerifiedProfile, error) {
	switch role {
	case session.RolePatient:
		return g.api.VerifyPatient(ctx, subjectRef, code, ch)
	case session.RoleProvider:
		return g.api.VerifyProvider(ctx, subjectRef, code, ch)
	case session.RoleAdmin:
		return g.api.VerifyAdmin(ctx, subjectRef, code, ch)
	default:
		return api.VerifiedProfile{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
}

// registerFor returns the registration call for role, or nil when the role
// has no self-service registration.
func (g *gateway) registerFor(role session.Role) func(context.Context, flows.Registration) (api.PendingVerification, error) {
	switch role {
	case session.RolePatient:
		return func(ctx context.Context, reg flows.Registration) (api.PendingVerification, error) {
			draft, ok := reg.(*RegistrationDraft)
			if !ok {
				return api.PendingVerification{}, fmt.Errorf("%w: patient registration requires a RegistrationDraft", ErrValidation)
			}
			return g.api.PatientRegister(ctx, draft.request())
		}
	case session.RoleAdmin:
		return func(ctx context.Context, reg flows.Registration) (api.PendingVerification, error) {
			draft, ok := reg.(*AdminRegistrationDraft)
			if !ok {
				return api.PendingVerification{}, fmt.Errorf("%w: admin registration requires an AdminRegistrationDraft", ErrValidation)
			}
			return g.api.AdminRegister(ctx, draft.request())
		}
	default:
		return nil
	}
}

// isRejected reports whether a verify failure means the code itself was
// invalid or expired.
func (g *gateway) isRejected(err error) bool {
	status, ok := api.StatusOf(err)
	if !ok {
		return false
	}
	_, rejected := g.rejects[status]
	return rejected
}
