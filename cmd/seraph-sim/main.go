// main.go implements the seraph-sim CLI: it brings up an in-process
// cluster of simulated DSM nodes, drives a deterministic read/write
// workload across them, and prints coherence and security statistics as
// pretty text or JSON.  A watch mode re-prints the stats periodically
// while the workload runs.
//
// Usage:
//
//	seraph-sim -nodes 4 -ops 100000 -dist zipf -seed 42 -json
//
// Build-time flag: `-ldflags "-X main.version=vX.Y.Z"`.
// ---------------------------------------------------------------
// © 2025 seraph authors. MIT License.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seraphos/substrate/internal/aether"
	substrate "github.com/seraphos/substrate/pkg"
)

var version = "dev"

type options struct {
	nodes    int
	ops      int
	dist     string
	zipfS    float64
	seed     int64
	writePct int
	span     uint32
	json     bool
	watch    bool
	interval time.Duration
	verbose  bool
	version  bool
}

func parseFlags() *options {
	o := &options{}
	flag.IntVar(&o.nodes, "nodes", 4, "number of simulated nodes")
	flag.IntVar(&o.ops, "ops", 100_000, "operations to run")
	flag.StringVar(&o.dist, "dist", "uniform", "address distribution: uniform or zipf")
	flag.Float64Var(&o.zipfS, "zipfs", 1.2, "zipf s parameter (>1)")
	flag.Int64Var(&o.seed, "seed", 42, "workload RNG seed")
	flag.IntVar(&o.writePct, "writes", 20, "percentage of operations that write")
	var span uint
	flag.UintVar(&span, "span", 1<<20, "per-node address span exercised (bytes)")
	flag.BoolVar(&o.json, "json", false, "emit stats as JSON")
	flag.BoolVar(&o.watch, "watch", false, "re-print stats periodically while running")
	flag.DurationVar(&o.interval, "interval", time.Second, "watch interval")
	flag.BoolVar(&o.verbose, "v", false, "verbose logging")
	flag.BoolVar(&o.version, "version", false, "print version and exit")
	flag.Parse()
	o.span = uint32(span)
	return o
}

func main() {
	opts := parseFlags()
	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fatal(err)
		}
		logger = l
	}

	s, err := substrate.New(opts.nodes,
		substrate.WithLogger(logger),
		substrate.WithArenaCapacity(64<<20),
	)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runWorkload(ctx, s, opts)
	}()

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ticker.C:
				if err := dump(s, opts); err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
				}
			case <-done:
				break loop
			case <-ctx.Done():
				break loop
			}
		}
	}
	<-done

	if err := dump(s, opts); err != nil {
		fatal(err)
	}
}

/* -------------------------------------------------------------------------
   Workload
   ------------------------------------------------------------------------- */

func runWorkload(ctx context.Context, s *substrate.Substrate, opts *options) {
	rng := rand.New(rand.NewSource(opts.seed))
	var zipf *rand.Zipf
	if opts.dist == "zipf" {
		zipf = rand.NewZipf(rng, opts.zipfS, 1.0, uint64(opts.span/64)-1)
	}

	buf := make([]byte, 64)
	for i := 0; i < opts.ops; i++ {
		if ctx.Err() != nil {
			return
		}
		from := uint16(rng.Intn(opts.nodes))
		owner := uint16(rng.Intn(opts.nodes))

		var slot uint64
		if zipf != nil {
			slot = zipf.Uint64()
		} else {
			slot = rng.Uint64() % uint64(opts.span/64)
		}
		addr := aether.MakeAddr(owner, uint32(slot*64))

		if rng.Intn(100) < opts.writePct {
			rng.Read(buf)
			s.Write(ctx, from, addr, buf)
		} else {
			s.Read(ctx, from, addr, buf)
		}
	}
}

/* -------------------------------------------------------------------------
   Output
   ------------------------------------------------------------------------- */

func dump(s *substrate.Substrate, opts *options) error {
	stats := s.Stats()
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	for id := 0; id < opts.nodes; id++ {
		st := stats[uint16(id)]
		fmt.Printf("node %d:\n", id)
		fmt.Printf("  cache      hits=%d misses=%d evictions=%d\n",
			st.CacheHits, st.CacheMisses, st.CacheEvictions)
		fmt.Printf("  ops        local r/w=%d/%d remote r/w=%d/%d\n",
			st.LocalReads, st.LocalWrites, st.RemoteReads, st.RemoteWrites)
		fmt.Printf("  coherence  conflicts=%d invalidations=%d dir_pages=%d\n",
			st.Conflicts, st.InvalidationsSent, st.DirectoryPages)
		fmt.Printf("  security   drops=%d timeouts=%d gen_stalls=%d\n",
			st.SecurityDrops, st.Timeouts, st.GenerationStalls)
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "seraph-sim:", err)
	os.Exit(1)
}
