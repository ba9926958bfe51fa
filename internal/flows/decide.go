package flows

// Outcome is the result of evaluating a confirmation attempt.
type Outcome int

const (
	OutcomeNotFound Outcome = iota
	OutcomeForbidden
	OutcomeAcceptLogin
	OutcomeAcceptConfirmation
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeAcceptLogin:
		return "accept_login"
	case OutcomeAcceptConfirmation:
		return "accept_confirmation"
	default:
		return "unknown"
	}
}

// Accepted reports whether the outcome lets the handshake proceed.
func (o Outcome) Accepted() bool {
	return o == OutcomeAcceptLogin || o == OutcomeAcceptConfirmation
}

// Decide applies the owner/confirmer table to an existing, route-matched
// session:
//
//	owner      confirmer   outcome
//	anonymous  anonymous   AcceptConfirmation
//	anonymous  principal   AcceptLogin (subject = confirmer)
//	principal  anonymous   AcceptLogin (subject = owner)
//	P          P           AcceptConfirmation
//	P          Q           Forbidden
//
// The returned subject is the concrete identity a login would be issued for;
// it is anonymous for every other outcome.
func Decide(owner, confirmer Identity) (Outcome, Identity) {
	switch {
	case owner.IsAnonymous() && confirmer.IsAnonymous():
		return OutcomeAcceptConfirmation, Identity{}
	case owner.IsAnonymous():
		return OutcomeAcceptLogin, confirmer
	case confirmer.IsAnonymous():
		return OutcomeAcceptLogin, owner
	case owner.Same(confirmer):
		return OutcomeAcceptConfirmation, Identity{}
	default:
		return OutcomeForbidden, Identity{}
	}
}

// MayPoll reports whether requester may observe a session owned by owner.
// Anonymous sessions are readable by whoever holds the key.
func MayPoll(owner, requester Identity) bool {
	if owner.IsAnonymous() {
		return true
	}
	return owner.Same(requester)
}
