package server

import (
	"context"
	"testing"
	"time"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"8080":           ":8080",
		":9090":          ":9090",
		"127.0.0.1:8080": "127.0.0.1:8080",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Errorf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	s := New(Config{WriteTimeout: time.Minute})
	if s.Addr() != ":8080" {
		t.Fatalf("addr: got %q", s.Addr())
	}
	if s.cfg.WriteTimeout != time.Minute || s.cfg.ReadHeaderTimeout != defaultReadHeaderTimeout || s.cfg.IdleTimeout != defaultIdleTimeout {
		t.Fatalf("unexpected config %+v", s.cfg)
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	if err := New(Config{}).Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown without Run: %v", err)
	}
}
