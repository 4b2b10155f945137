// Command meshcache runs a single cache node: it binds the peer HTTP
// transport, joins the seed peers and serves until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/meshcache/meshcache"
	"github.com/meshcache/meshcache/internal/constants"
	"github.com/meshcache/meshcache/pkg/middleware"
	"github.com/meshcache/meshcache/pkg/replication"
	"github.com/meshcache/meshcache/pkg/store"
	"github.com/meshcache/meshcache/pkg/transport"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:7946", "listen address for the peer transport")
		nodeID      = flag.String("node-id", "", "stable node id (defaults to a random uuid)")
		seeds       = flag.String("seeds", "", "comma-separated seed peer addresses")
		capacity    = flag.Int("capacity", constants.DefaultCapacity, "per-node entry capacity (0 = unlimited)")
		algorithm   = flag.String("eviction", constants.DefaultEvictionAlgorithm, "eviction policy: lru, lfu or ttl")
		replicas    = flag.Int("replication-factor", constants.DefaultReplicationFactor, "distinct owners per key")
		consistency = flag.String("consistency", "quorum", "write consistency: one, quorum or all")
	)

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}

	defer func() { _ = logger.Sync() }() //nolint:errcheck // stderr sync

	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := meshcache.NewConfig[store.InMemory](meshcache.InMemoryStore)
	cfg.InMemoryOptions = append(cfg.InMemoryOptions,
		store.WithCapacity[store.InMemory](*capacity),
		store.WithEvictionAlgorithm(*algorithm),
	)
	cfg.MeshCacheOptions = append(cfg.MeshCacheOptions,
		meshcache.WithNode[store.InMemory](*nodeID, *addr),
		meshcache.WithReplicationFactor[store.InMemory](*replicas),
		meshcache.WithWriteConsistency[store.InMemory](parseConsistency(*consistency)),
		meshcache.WithTransport[store.InMemory](transport.NewHTTPClient(constants.DefaultTransportTimeout)),
		meshcache.WithSeeds[store.InMemory](splitSeeds(*seeds)...),
	)

	node, err := meshcache.New(ctx, cfg)
	if err != nil {
		sugar.Fatalw("failed to start node", "error", err)
	}

	server := transport.NewHTTPServer(*addr, node)

	err = server.Start(ctx)
	if err != nil {
		sugar.Fatalw("failed to bind transport", "error", err)
	}

	svc := meshcache.ApplyMiddleware(meshcache.Service(node),
		func(next meshcache.Service) meshcache.Service {
			return middleware.NewLoggingMiddleware(next, &zapPrintfAdapter{sugar})
		},
	)

	sugar.Infow("node up",
		"node", node.LocalNode().ID,
		"addr", server.Addr(),
		"replication_factor", *replicas,
		"consistency", parseConsistency(*consistency).String(),
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = server.Stop(shutdownCtx)
	if err != nil {
		sugar.Warnw("transport shutdown", "error", err)
	}

	err = svc.Stop(shutdownCtx)
	if err != nil {
		sugar.Warnw("node shutdown", "error", err)
	}
}

func parseConsistency(name string) replication.Consistency {
	switch strings.ToLower(name) {
	case "one":
		return replication.ConsistencyOne
	case "all":
		return replication.ConsistencyAll
	default:
		return replication.ConsistencyQuorum
	}
}

func splitSeeds(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

// zapPrintfAdapter bridges zap's sugared logger to the middleware Logger interface.
type zapPrintfAdapter struct {
	sugar *zap.SugaredLogger
}

func (a *zapPrintfAdapter) Printf(format string, v ...any) {
	a.sugar.Infof(format, v...)
}
