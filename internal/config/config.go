// Package config loads the static cluster configuration a replicad
// process starts from: its own identity, its peers' addresses, and the
// tunables that govern RPC timeouts and failure injection.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/kickboxer/quorumkv/internal/membership"
	"github.com/kickboxer/quorumkv/internal/paxos"
)

// PeerConfig is one cluster member as it appears in the config file: a
// NodeID paired with the TCP address its wire server listens on.
type PeerConfig struct {
	NodeID string `mapstructure:"node_id"`
	Addr   string `mapstructure:"addr"`
}

// Config is everything a replicad process needs to construct its
// Membership, Replica, and transport.
type Config struct {
	Self       string
	ListenAddr string
	Peers      []PeerConfig
	RPCTimeout time.Duration

	FailureInjectionEnabled bool
	FailureRate             float64
	FailureMaxDelay         time.Duration
}

// Load reads configuration from v, which the caller has already bound to
// a config file path, environment variables, and/or command flags via
// viper's usual precedence rules (flags > env > file > defaults).
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("rpc_timeout", "2s")
	v.SetDefault("failure_injection.enabled", false)
	v.SetDefault("failure_injection.rate", 0.0)
	v.SetDefault("failure_injection.max_delay", "500ms")

	self := v.GetString("self")
	if self == "" {
		return nil, errors.New("config: \"self\" node id is required")
	}
	listenAddr := v.GetString("listen_addr")
	if listenAddr == "" {
		return nil, errors.New("config: \"listen_addr\" is required")
	}

	var peers []PeerConfig
	if err := v.UnmarshalKey("peers", &peers); err != nil {
		return nil, errors.Wrap(err, "config: parsing peers")
	}
	if len(peers) == 0 {
		return nil, errors.New("config: \"peers\" must list at least one cluster member")
	}

	rpcTimeout := v.GetDuration("rpc_timeout")
	if rpcTimeout <= 0 {
		return nil, errors.New("config: \"rpc_timeout\" must be positive")
	}

	return &Config{
		Self:                    self,
		ListenAddr:              listenAddr,
		Peers:                   peers,
		RPCTimeout:              rpcTimeout,
		FailureInjectionEnabled: v.GetBool("failure_injection.enabled"),
		FailureRate:             v.GetFloat64("failure_injection.rate"),
		FailureMaxDelay:         v.GetDuration("failure_injection.max_delay"),
	}, nil
}

// Membership builds the membership.Membership this Config describes.
func (c *Config) Membership() (*membership.Membership, error) {
	addrs := make([]membership.PeerAddr, len(c.Peers))
	var self *membership.PeerAddr
	for i, p := range c.Peers {
		addrs[i] = membership.PeerAddr{NodeID: p.NodeID, Addr: p.Addr}
		if p.NodeID == c.Self {
			self = &addrs[i]
		}
	}
	if self == nil {
		return nil, errors.Errorf("config: self %q not present in peers", c.Self)
	}
	return membership.New(*self, addrs)
}

// FailureInjector builds the paxos.FailureInjector this Config describes.
func (c *Config) FailureInjector(seed int64) *paxos.FailureInjector {
	if !c.FailureInjectionEnabled {
		return paxos.NoFailureInjection()
	}
	return paxos.NewFailureInjector(c.FailureRate, c.FailureMaxDelay, seed)
}
