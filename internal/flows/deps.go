package flows

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/clinicAuth/api"
	"github.com/MrEthical07/clinicAuth/internal/otp"
	"github.com/MrEthical07/clinicAuth/internal/resolver"
	"github.com/MrEthical07/clinicAuth/session"
)

// Registration is a completed registration draft.
type Registration interface {
	Validate() error
	LookupKey() string
	Channel() api.Channel
}

type MachineErrors struct {
	NotReady                error
	Validation              error
	InvalidTransition       error
	Busy                    error
	Stale                   error
	Cooldown                error
	CodeRejected            error
	RegistrationUnsupported error
}

type MachineMetrics struct {
	IdentityFound         int
	IdentityNotFound      int
	IdentityError         int
	RegistrationSubmitted int
	RegistrationFailed    int
	CodeDispatched        int
	CodeDispatchFailed    int
	ResendBlocked         int
	VerifySuccess         int
	VerifyRejected        int
	VerifyError           int
	SessionCreated        int
	FlowCancelled         int
	StaleResponse         int
}

type MachineEvents struct {
	IdentityResolved      string
	RegistrationSubmitted string
	CodeDispatched        string
	CodeVerified          string
	CodeRejected          string
	FlowCancelled         string
}

type MachineDeps struct {
	Role           session.Role
	DefaultChannel api.Channel
	CodeDigits     int

	Resolve    func(context.Context, resolver.Query, api.Channel) resolver.Resolution
	Login      func(context.Context, session.Role, string, api.Channel) (api.PendingVerification, error)
	Register   func(context.Context, Registration) (api.PendingVerification, error)
	Verify     func(context.Context, session.Role, string, string, api.Channel) (api.VerifiedProfile, error)
	SetSession func(*session.Session)
	IsRejected func(error) bool

	NewNegotiator func() *otp.Negotiator
	NewID         func() string
	Now           func() time.Time

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, subjectID, challengeID string, err error, metadata func() map[string]string)

	Metrics MachineMetrics
	Events  MachineEvents
	Errors  MachineErrors
}

func normalizeMachineDeps(deps *MachineDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DefaultChannel == "" {
		deps.DefaultChannel = api.ChannelSMS
	}
	if deps.CodeDigits <= 0 {
		deps.CodeDigits = 6
	}
	if deps.NewNegotiator == nil {
		now := deps.Now
		deps.NewNegotiator = func() *otp.Negotiator { return otp.New(otp.Config{Now: now}) }
	}
	if deps.NewID == nil {
		var n int
		deps.NewID = func() string {
			n++
			return "challenge-" + strconv.Itoa(n)
		}
	}
	if deps.IsRejected == nil {
		deps.IsRejected = func(error) bool { return false }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
}
