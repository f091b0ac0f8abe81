package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"floeworld/internal/persistence/indexdb"
	"floeworld/internal/persistence/snapshot"
	"floeworld/internal/protocol"
	"floeworld/internal/sim/tuning"
	"floeworld/internal/sim/world"
	"floeworld/internal/telemetry"
	"floeworld/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting fresh)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: embedded defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory (empty to disable persistence)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "resume from the latest indexed snapshot when -snapshot is empty")

		tickRate    = flag.Int("tick_rate", 10, "simulation ticks per second while running")
		pushEvery   = flag.Int("push_every", 2, "broadcast STATE every N ticks (0 disables)")
		sampleEvery = flag.Int("sample_every", 10, "telemetry/index sample every N ticks (0 disables)")
		snapEvery   = flag.Int("snapshot_every", 2000, "write a snapshot every N ticks (0 disables)")
		autoStart   = flag.Bool("autostart", false, "begin ticking immediately")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "server",
	})

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		var err error
		tune, err = tuning.Load(tp)
		if err != nil {
			logger.Fatal("load tuning", "path", tp, "err", err)
		}
		logger.Info("tuning loaded", "path", tp)
	}

	w, err := world.New(world.Config{Seed: *seed}, tune)
	if err != nil {
		logger.Fatal("create world", "err", err)
	}

	var idx *indexdb.SQLiteIndex
	if *dataDir != "" && !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatal("open index", "err", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Warn("record tuning", "err", err)
		}
	}

	if path := resolveSnapshot(*snapPath, *loadLatest, idx, logger); path != "" {
		snap, err := snapshot.Read(path)
		if err != nil {
			logger.Fatal("read snapshot", "path", path, "err", err)
		}
		if err := w.Import(snap.State); err != nil {
			logger.Fatal("import snapshot", "path", path, "err", err)
		}
		logger.Info("resumed from snapshot", "path", path, "tick", snap.Header.Tick)
	}

	var tel *telemetry.OutputManager
	if *dataDir != "" {
		tel, err = telemetry.NewOutputManager(filepath.Join(*dataDir, "telemetry"))
		if err != nil {
			logger.Fatal("open telemetry", "err", err)
		}
		defer tel.Close()
	}

	rt := world.NewRuntime(w, world.RuntimeConfig{
		TickRateHz:       *tickRate,
		PushEveryTicks:   *pushEvery,
		SampleEveryTicks: *sampleEvery,
		AutoStart:        *autoStart,
	})
	rt.OnSample = func(st protocol.WorldState) {
		stats := telemetry.Collect(st)
		if err := tel.Write(stats); err != nil {
			logger.Warn("telemetry write", "err", err)
		}
		if idx != nil {
			idx.WriteTick(indexdb.TickStat{
				Tick:        st.Tick,
				Penguins:    stats.Penguins,
				Seals:       stats.Seals,
				Fish:        stats.Fish,
				Temperature: stats.Temperature,
				IceCoverage: stats.IceCoverage,
				Season:      stats.Season,
			})
		}
		if *dataDir != "" && *snapEvery > 0 && st.Tick > 0 && st.Tick%uint64(*snapEvery) == 0 {
			path := filepath.Join(*dataDir, "snapshots", fmt.Sprintf("tick-%d.zst", st.Tick))
			snap := snapshot.New(*seed, st)
			if err := snapshot.Write(path, snap); err != nil {
				logger.Error("write snapshot", "path", path, "err", err)
				return
			}
			idx.RecordSnapshot(path, snap)
			logger.Info("snapshot written", "path", path, "tick", st.Tick)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan error, 1)
	go func() { loopDone <- rt.Run(ctx) }()

	mux := http.NewServeMux()
	ws.NewServer(rt, logger.WithPrefix("ws")).Register(mux)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", *addr, "seed", *seed, "tick_rate", *tickRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutCtx)
	rt.Stop()
	select {
	case <-loopDone:
	case <-time.After(5 * time.Second):
	}
	logger.Info("bye")
}

// resolveSnapshot picks the snapshot to resume from: an explicit path wins,
// otherwise the latest one the index knows about.
func resolveSnapshot(explicit string, loadLatest bool, idx *indexdb.SQLiteIndex, logger *log.Logger) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if !loadLatest || idx == nil {
		return ""
	}
	path, tick, ok, err := idx.LatestSnapshot()
	if err != nil {
		logger.Warn("query latest snapshot", "err", err)
		return ""
	}
	if !ok {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("indexed snapshot missing on disk", "path", path, "tick", tick)
		return ""
	}
	return path
}
