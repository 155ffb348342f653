package flows

import (
	"time"

	"github.com/MrEthical07/clinicAuth/api"
)

// State is a verification controller state.
type State uint8

const (
	StateIdle State = iota
	StateIdentityEntered
	StateBranchFound
	StateBranchNotFound
	StateRegistering
	StateChannelChosen
	StateCodeDispatched
	StateVerifying
	StateAuthenticated
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:            "idle",
	StateIdentityEntered: "identity_entered",
	StateBranchFound:     "branch_found",
	StateBranchNotFound:  "branch_not_found",
	StateRegistering:     "registering",
	StateChannelChosen:   "channel_chosen",
	StateCodeDispatched:  "code_dispatched",
	StateVerifying:       "verifying",
	StateAuthenticated:   "authenticated",
	StateCancelled:       "cancelled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateCancelled
}

// Challenge is the in-flight OTP exchange.
type Challenge struct {
	ID           string
	SubjectRef   string
	Channel      api.Channel
	DispatchedAt time.Time
	// AttemptsRemaining is informational; zero means unknown.
	AttemptsRemaining int
	// Code is the last code entered by the user.
	Code string
	// FromRegistration is set when the code was sent by a register call.
	FromRegistration bool
}

// Snapshot is a consistent read of a machine between suspensions.
type Snapshot struct {
	State        State
	LookupKey    string
	Channel      api.Channel
	Challenge    *Challenge
	Pending      bool
	CanResend    bool
	Remaining    time.Duration
	LastRejected bool
}
