package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func baseViper() *viper.Viper {
	v := viper.New()
	v.Set("self", "a")
	v.Set("listen_addr", "127.0.0.1:9001")
	v.Set("peers", []map[string]string{
		{"node_id": "a", "addr": "127.0.0.1:9001"},
		{"node_id": "b", "addr": "127.0.0.1:9002"},
		{"node_id": "c", "addr": "127.0.0.1:9003"},
	})
	return v
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(baseViper())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCTimeout != 2*time.Second {
		t.Fatalf("RPCTimeout = %v, want 2s default", cfg.RPCTimeout)
	}
	if cfg.FailureInjectionEnabled {
		t.Fatal("FailureInjectionEnabled should default to false")
	}
	if len(cfg.Peers) != 3 {
		t.Fatalf("len(Peers) = %d, want 3", len(cfg.Peers))
	}
}

func TestLoadRejectsMissingSelf(t *testing.T) {
	v := baseViper()
	v.Set("self", "")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for missing self")
	}
}

func TestLoadRejectsEmptyPeers(t *testing.T) {
	v := baseViper()
	v.Set("peers", []map[string]string{})
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for empty peers")
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	v := baseViper()
	v.Set("rpc_timeout", "0s")
	if _, err := Load(v); err == nil {
		t.Fatal("expected error for non-positive rpc_timeout")
	}
}

func TestMembershipBuildsFromConfig(t *testing.T) {
	cfg, err := Load(baseViper())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mem, err := cfg.Membership()
	if err != nil {
		t.Fatalf("Membership: %v", err)
	}
	if mem.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", mem.Size())
	}
	if mem.Self().NodeID != "a" {
		t.Fatalf("Self().NodeID = %q, want a", mem.Self().NodeID)
	}
}

func TestMembershipRejectsUnknownSelf(t *testing.T) {
	v := baseViper()
	v.Set("self", "z")
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.Membership(); err == nil {
		t.Fatal("expected error when self is not among peers")
	}
}

func TestFailureInjectorDisabledByDefault(t *testing.T) {
	cfg, err := Load(baseViper())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	inj := cfg.FailureInjector(1)
	if inj == nil || !inj.Disabled {
		t.Fatalf("FailureInjector() = %+v, want disabled", inj)
	}
}

func TestFailureInjectorEnabled(t *testing.T) {
	v := baseViper()
	v.Set("failure_injection.enabled", true)
	v.Set("failure_injection.rate", 0.5)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.FailureInjectionEnabled {
		t.Fatal("FailureInjectionEnabled should be true")
	}
	inj := cfg.FailureInjector(1)
	if inj == nil || inj.Disabled {
		t.Fatalf("FailureInjector() = %+v, want enabled", inj)
	}
}
