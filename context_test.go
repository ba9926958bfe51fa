package goQR

import (
	"context"
	"testing"
)

func TestWithClientIPCanonicalizes(t *testing.T) {
	cases := map[string]string{
		"198.51.100.7":              "198.51.100.7",
		" 198.51.100.7 ":            "198.51.100.7",
		"198.51.100.7:5432":         "198.51.100.7",
		"::ffff:198.51.100.7":       "198.51.100.7",
		"[::ffff:198.51.100.7]:443": "198.51.100.7",
		"2001:db8::1":               "2001:db8::1",
		"[2001:db8::1]:8080":        "2001:db8::1",
		"fe80::1%eth0":              "fe80::1",
		"unix-socket":               "unix-socket",
		"":                          "",
	}
	for in, want := range cases {
		got := clientIPFromContext(WithClientIP(context.Background(), in))
		if got != want {
			t.Fatalf("WithClientIP(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestMappedAddressSharesConfirmBudget(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, _ := newTestEngine(t, rdb, func(cfg *Config) {
		cfg.Security.MaxFailedConfirms = 2
	})

	missing := "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"
	for _, ip := range []string{"198.51.100.7", "[::ffff:198.51.100.7]:443"} {
		ctx := WithClientIP(context.Background(), ip)
		_, _ = engine.Confirm(ctx, routePurchase, missing, Anonymous())
	}

	n, err := engine.FailedConfirms(context.Background(), "198.51.100.7")
	if err != nil {
		t.Fatalf("FailedConfirms failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected both spellings to count against one IP, got %d", n)
	}
}
