package goQR

import (
	"context"
	"errors"
	"testing"
)

func TestIdentity(t *testing.T) {
	if !Anonymous().IsAnonymous() || !(Identity{}).IsAnonymous() {
		t.Fatal("zero identity must be anonymous")
	}
	if !Principal("").IsAnonymous() {
		t.Fatal("principal with empty id must be anonymous")
	}

	p := Principal("7")
	if p.IsAnonymous() || p.ID() != "7" || p.String() != "7" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if Anonymous().ID() != "" || Anonymous().String() != "anonymous" {
		t.Fatal("unexpected anonymous rendering")
	}

	if !p.Equal(Principal("7")) || p.Equal(Principal("8")) || p.Equal(Anonymous()) {
		t.Fatal("principal equality is by id")
	}
	if !Anonymous().Equal(Principal("")) {
		t.Fatal("anonymous identities are equal to each other")
	}

	if got := identityFromFlow(p.toFlow()); !got.Equal(p) {
		t.Fatalf("flow round trip changed identity: %s", got)
	}
}

func TestOutcomeStrings(t *testing.T) {
	cases := map[Outcome]string{
		OutcomeNotFound:           "not_found",
		OutcomeForbidden:          "forbidden",
		OutcomeAcceptLogin:        "accept_login",
		OutcomeAcceptConfirmation: "accept_confirmation",
	}
	for o, want := range cases {
		if o.String() != want {
			t.Fatalf("expected %q, got %q", want, o.String())
		}
	}
	if OutcomeForbidden.Accepted() || !OutcomeAcceptLogin.Accepted() {
		t.Fatal("unexpected Accepted result")
	}
	if PollPending.String() != "pending" || PollConfirmed.String() != "confirmed" {
		t.Fatal("unexpected poll status strings")
	}
}

func TestRouteTable(t *testing.T) {
	table := RouteTable{
		BaseURL: "https://example.com/app/",
		Routes: map[string]string{
			"query": "qr/confirm",
			"path":  "/qr/confirm/{code_hash}/",
		},
	}
	ctx := context.Background()

	got, err := table.ResolveConfirmationURL(ctx, "query", "abc")
	if err != nil || got != "https://example.com/app/qr/confirm?code_hash=abc" {
		t.Fatalf("unexpected query URL %q / %v", got, err)
	}

	got, err = table.ResolveConfirmationURL(ctx, "path", "abc")
	if err != nil || got != "https://example.com/qr/confirm/abc/" {
		t.Fatalf("unexpected path URL %q / %v", got, err)
	}

	if _, err := table.ResolveConfirmationURL(ctx, "missing", "abc"); !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
	if _, err := table.ResolveConfirmationURL(ctx, "", "abc"); !errors.Is(err, ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound for empty route, got %v", err)
	}

	bad := RouteTable{BaseURL: "not a url", Routes: table.Routes}
	if _, err := bad.ResolveConfirmationURL(ctx, "query", "abc"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for bad base, got %v", err)
	}
}
