// Command replicad starts one Replica of a consensus key/value cluster,
// listening on the configured TCP address for peer RPCs and exiting
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"
	"github.com/google/uuid"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kickboxer/quorumkv/internal/config"
	"github.com/kickboxer/quorumkv/internal/membership"
	"github.com/kickboxer/quorumkv/internal/metrics"
	"github.com/kickboxer/quorumkv/internal/paxos"
	"github.com/kickboxer/quorumkv/internal/replica"
	"github.com/kickboxer/quorumkv/internal/transport/wire"
)

var logger = logging.MustGetLogger("replicad")

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "replicad",
		Short: "runs one node of a consensus-replicated key/value cluster",
		RunE:  runServe,
	}
	root.Flags().StringVar(&cfgFile, "config", "", "path to a config file (yaml/json/toml)")
	root.Flags().String("self", "", "this node's id, must match one entry in the peer list")
	root.Flags().String("listen_addr", "", "TCP address this node's peer RPC server listens on")
	root.Flags().Duration("rpc_timeout", 0, "per-RPC timeout bounding each peer call")
	root.Flags().String("statsd_addr", "", "statsd collector address; leave empty to skip metrics")
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrap(err, "replicad: reading config file")
		}
	}
	v.SetEnvPrefix("replicad")
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "replicad: binding flags")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	mem, err := cfg.Membership()
	if err != nil {
		return err
	}

	instanceID := uuid.NewString()
	logger.Info("starting replica %s (instance %s), cluster size %d", cfg.Self, instanceID, mem.Size())

	rec, closeMetrics, err := newMetricsRecorder(v.GetString("statsd_addr"))
	if err != nil {
		return err
	}
	defer closeMetrics()

	clients := make([]*wire.Client, 0, len(cfg.Peers))
	resolve := func(p membership.PeerAddr) paxos.PeerClient {
		c := wire.NewClient(p.Addr, 10)
		clients = append(clients, c)
		return c
	}

	r := replica.New(mem, resolve, cfg.FailureInjector(time.Now().UnixNano()), rec)

	srv, err := wire.NewServer(cfg.ListenAddr, r)
	if err != nil {
		return errors.Wrapf(err, "replicad: listening on %s", cfg.ListenAddr)
	}
	go srv.Serve()

	r.Start()
	logger.Info("replica %s running, listening on %s", cfg.Self, srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("replica %s shutting down", cfg.Self)
	r.Stop()
	if err := srv.Close(); err != nil {
		logger.Warning("error closing transport server: %v", err)
	}
	for _, c := range clients {
		c.Close()
	}
	return nil
}

// newMetricsRecorder builds a statsd-backed Recorder when addr is set,
// or a no-op Recorder otherwise. The returned func must be called on
// shutdown to close the underlying statsd client.
func newMetricsRecorder(addr string) (metrics.Recorder, func(), error) {
	if addr == "" {
		return metrics.Noop(), func() {}, nil
	}
	client, err := statsd.NewClient(addr, "replicad")
	if err != nil {
		return nil, nil, errors.Wrapf(err, "replicad: connecting to statsd at %s", addr)
	}
	return metrics.NewStatsd(client), func() { client.Close() }, nil
}
