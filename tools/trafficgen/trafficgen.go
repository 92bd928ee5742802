// trafficgen.go is a tiny helper utility that emits deterministic
// aether access streams for standalone benchmarking of the DSM layer
// (outside `go test`).  Each line is `<node> <offset> <r|w>`; the same
// seed always reproduces the same stream, so performance regressions
// can be hunted against a fixed workload.
//
// Usage:
//
//	go run ./tools/trafficgen -n 1000000 -nodes 4 -dist zipf -seed 42 -out ops.txt
//
// © 2025 seraph authors. MIT License.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		n        = flag.Int("n", 1_000_000, "number of operations to generate")
		nodes    = flag.Int("nodes", 4, "node count")
		span     = flag.Uint("span", 1<<20, "per-node address span (bytes)")
		dist     = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS    = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		writePct = flag.Int("writes", 20, "percentage of writes")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "RNG seed")
		out      = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	w := bufio.NewWriter(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "trafficgen:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = bufio.NewWriter(f)
	}
	defer w.Flush()

	rng := rand.New(rand.NewSource(*seed))
	var zipf *rand.Zipf
	if *dist == "zipf" {
		zipf = rand.NewZipf(rng, *zipfS, 1.0, uint64(*span/64)-1)
	}

	for i := 0; i < *n; i++ {
		node := rng.Intn(*nodes)
		var slot uint64
		if zipf != nil {
			slot = zipf.Uint64()
		} else {
			slot = rng.Uint64() % uint64(*span/64)
		}
		op := "r"
		if rng.Intn(100) < *writePct {
			op = "w"
		}
		fmt.Fprintf(w, "%d %d %s\n", node, slot*64, op)
	}
}
