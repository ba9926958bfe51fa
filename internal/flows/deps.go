package flows

import "context"

// Identity is an explicit anonymous-or-principal value. An empty ID with
// Authenticated set is treated as anonymous by every flow.
type Identity struct {
	ID            string
	Authenticated bool
}

func (i Identity) IsAnonymous() bool {
	return !i.Authenticated || i.ID == ""
}

// Same reports whether both identities name the same concrete principal.
// Two anonymous identities are never the same principal.
func (i Identity) Same(other Identity) bool {
	return !i.IsAnonymous() && !other.IsAnonymous() && i.ID == other.ID
}

// String renders the identity for audit and logs.
func (i Identity) String() string {
	if i.IsAnonymous() {
		return "anonymous"
	}
	return i.ID
}

// SessionRecord is the pending session as the flows see it.
type SessionRecord struct {
	Owner Identity
	Route string
}

// ResultRecord is the accepted outcome left for the generating client.
type ResultRecord struct {
	Outcome Outcome
	Owner   Identity
	Subject Identity
	Route   string
	Login   map[string]any
}

// AuditRecord is what a flow reports about one step. The engine turns it into
// an audit event, shortening the session key on the way.
type AuditRecord struct {
	EventType  string
	Route      string
	Owner      Identity
	Confirmer  Identity
	SessionKey string
	Outcome    Outcome
	Success    bool
	Err        error
}

func noopAudit(context.Context, AuditRecord) {}

func noopMetric(int) {}

func noopWarn(context.Context, string, error) {}
