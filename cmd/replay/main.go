// Command replay re-runs a simulation headlessly and prints state digests,
// for verifying determinism across machines and builds. It can start fresh
// from a seed or resume from a snapshot file.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"floeworld/internal/persistence/snapshot"
	"floeworld/internal/sim/tuning"
	"floeworld/internal/sim/world"
)

func main() {
	var (
		seed       = flag.Int64("seed", 1337, "world seed for a fresh run")
		snapPath   = flag.String("snapshot", "", "snapshot file to resume from (overrides -seed state)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: embedded defaults)")
		n          = flag.Int("n", 1000, "ticks to run")
		every      = flag.Int("every", 100, "print a digest every N ticks (0: final only)")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "replay"})

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		var err error
		tune, err = tuning.Load(tp)
		if err != nil {
			logger.Fatal("load tuning", "path", tp, "err", err)
		}
	}

	w, err := world.New(world.Config{Seed: *seed}, tune)
	if err != nil {
		logger.Fatal("create world", "err", err)
	}
	if p := strings.TrimSpace(*snapPath); p != "" {
		snap, err := snapshot.Read(p)
		if err != nil {
			logger.Fatal("read snapshot", "path", p, "err", err)
		}
		if err := w.Import(snap.State); err != nil {
			logger.Fatal("import snapshot", "path", p, "err", err)
		}
		logger.Info("resumed", "path", p, "tick", snap.Header.Tick)
	}

	if *n <= 0 {
		logger.Fatal("n must be positive")
	}
	for i := 0; i < *n; i++ {
		w.Tick()
		if *every > 0 && w.TickCount()%uint64(*every) == 0 {
			printDigest(w)
		}
	}
	printDigest(w)
}

func printDigest(w *world.World) {
	p, s, f := w.Counts()
	fmt.Printf("tick=%d penguins=%d seals=%d fish=%d digest=%s\n",
		w.TickCount(), p, s, f, w.Digest())
}
