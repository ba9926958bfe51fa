package flows

import "testing"

func TestDecideTable(t *testing.T) {
	anon := Identity{}
	p := Identity{ID: "7", Authenticated: true}
	q := Identity{ID: "8", Authenticated: true}

	cases := []struct {
		name      string
		owner     Identity
		confirmer Identity
		outcome   Outcome
		subject   Identity
	}{
		{"anonymous/anonymous", anon, anon, OutcomeAcceptConfirmation, Identity{}},
		{"anonymous/principal", anon, p, OutcomeAcceptLogin, p},
		{"principal/anonymous", p, anon, OutcomeAcceptLogin, p},
		{"same principal", p, p, OutcomeAcceptConfirmation, Identity{}},
		{"different principal", p, q, OutcomeForbidden, Identity{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, subject := Decide(tc.owner, tc.confirmer)
			if outcome != tc.outcome {
				t.Fatalf("expected %s, got %s", tc.outcome, outcome)
			}
			if subject != tc.subject {
				t.Fatalf("expected subject %+v, got %+v", tc.subject, subject)
			}
		})
	}
}

func TestEmptyPrincipalIsAnonymous(t *testing.T) {
	empty := Identity{Authenticated: true}
	if !empty.IsAnonymous() {
		t.Fatal("authenticated identity with empty id must be anonymous")
	}
	if empty.Same(empty) {
		t.Fatal("anonymous identities must never be the same principal")
	}

	outcome, _ := Decide(empty, empty)
	if outcome != OutcomeAcceptConfirmation {
		t.Fatalf("expected anonymous/anonymous handling, got %s", outcome)
	}
}

func TestMayPoll(t *testing.T) {
	anon := Identity{}
	p := Identity{ID: "7", Authenticated: true}
	q := Identity{ID: "8", Authenticated: true}

	if !MayPoll(anon, q) || !MayPoll(anon, anon) {
		t.Fatal("anonymous sessions are readable by key holders")
	}
	if !MayPoll(p, p) {
		t.Fatal("owner must be able to poll")
	}
	if MayPoll(p, q) || MayPoll(p, anon) {
		t.Fatal("other requesters must not poll a principal's session")
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeAcceptLogin.String() != "accept_login" {
		t.Fatalf("unexpected %q", OutcomeAcceptLogin.String())
	}
	if Outcome(99).String() != "unknown" {
		t.Fatalf("unexpected %q", Outcome(99).String())
	}
}
