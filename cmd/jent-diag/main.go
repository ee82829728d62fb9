package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bukka/lrng/internal/config"
	"github.com/bukka/lrng/internal/espool"
	"github.com/bukka/lrng/internal/jitter"
	"github.com/bukka/lrng/internal/ui"
	"github.com/bukka/lrng/internal/version"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	blocks := flag.Int("blocks", 0, "Slot count override (power of two, >= 4)")
	fetchRate := flag.Float64("rate", 20, "Synthetic consumer fetches per second")
	interval := flag.Duration("interval", 250*time.Millisecond, "UI refresh interval")
	duration := flag.Duration("duration", 0, "Exit after this long (0 = run until interrupted)")
	noTUI := flag.Bool("no-tui", false, "Disable TUI, print periodic status lines")
	debug := flag.Bool("debug", false, "Slot-level diagnostics on stderr")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("jent-diag version %s\n", version.String())
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *blocks > 0 {
		cfg.Pool.Blocks = *blocks
	}
	if *debug {
		cfg.Output.Debug = true
	}
	if *noTUI {
		cfg.Output.NoTUI = true
	}
	espool.Debug = cfg.Output.Debug

	src, err := jitter.NewTimerSource(cfg.Source.Calibration.Duration)
	if err != nil {
		// The pool still comes up, permanently uninitialized, which is
		// exactly the state this tool exists to make visible.
		log.Printf("Timer source unavailable: %v", err)
	}

	var poolSrc jitter.Source
	if src != nil {
		poolSrc = jitter.NewLocked(src)
	}
	pool, err := espool.New(cfg, poolSrc, func() {
		log.Printf("JitterRNG source fully seeded")
	})
	if err != nil {
		log.Fatalf("Failed to build pool: %v", err)
	}

	mode := ui.ModeTUI
	if cfg.Output.NoTUI || !isatty.IsTerminal(os.Stdout.Fd()) {
		mode = ui.ModeText
	}
	if cfg.Output.Quiet {
		mode = ui.ModeSilent
	}

	// Synthetic consumer: seed-oversampled fetches at the requested rate.
	var running int32 = 1
	var fetches uint64
	go func() {
		if *fetchRate <= 0 {
			return
		}
		tick := time.NewTicker(time.Duration(float64(time.Second) / *fetchRate))
		defer tick.Stop()
		for range tick.C {
			if atomic.LoadInt32(&running) == 0 {
				return
			}
			pool.Fetch(pool.SeedBitsOSR(), true)
			atomic.AddUint64(&fetches, 1)
		}
	}()

	start := time.Now()
	snapshot := func() ui.PoolStats {
		st := pool.Stats()
		elapsed := time.Since(start)
		return ui.PoolStats{
			Hits:        st.FastPathHits,
			Misses:      st.PoolMisses,
			Direct:      st.DirectFetches,
			Passes:      st.RefillPasses,
			Filled:      st.SlotsFilled,
			Failures:    st.SourceFailures,
			States:      pool.SlotStates(),
			Available:   pool.PoolSize(),
			Enabled:     pool.AsyncEnabled(),
			Initialized: pool.Initialized(),
			Elapsed:     elapsed,
			FetchRate:   float64(atomic.LoadUint64(&fetches)) / elapsed.Seconds(),
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	switch mode {
	case ui.ModeTUI:
		runTUI(pool, snapshot, *interval, *duration, sigCh)
	case ui.ModeText:
		runText(pool, snapshot, *interval, *duration, sigCh)
	case ui.ModeSilent:
		runSilent(*duration, sigCh)
	}

	atomic.StoreInt32(&running, 0)
	pool.Wipe()
}

func runTUI(pool *espool.Pool, snapshot func() ui.PoolStats,
	interval, duration time.Duration, sigCh chan os.Signal) {

	model := ui.NewModel(pool.Blocks(), pool.SeedBitsOSR(), func() {
		pool.SetAsync(!pool.AsyncEnabled())
	})
	prog := tea.NewProgram(model, tea.WithAltScreen())

	done := make(chan struct{})
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		var expire <-chan time.Time
		if duration > 0 {
			expire = time.After(duration)
		}
		for {
			select {
			case <-tick.C:
				prog.Send(snapshot())
			case <-sigCh:
				prog.Send(ui.DoneMsg{})
			case <-expire:
				prog.Send(ui.DoneMsg{})
			case <-done:
				return
			}
		}
	}()

	if _, err := prog.Run(); err != nil {
		log.Fatalf("UI error: %v", err)
	}
	close(done)
}

func runText(pool *espool.Pool, snapshot func() ui.PoolStats,
	interval, duration time.Duration, sigCh chan os.Signal) {

	tick := time.NewTicker(interval)
	defer tick.Stop()
	var expire <-chan time.Time
	if duration > 0 {
		expire = time.After(duration)
	}
	for {
		select {
		case <-tick.C:
			st := snapshot()
			filled := 0
			for _, s := range st.States {
				if s == ui.StateFilled {
					filled++
				}
			}
			fmt.Printf("filled=%d/%d hits=%d misses=%d direct=%d passes=%d failures=%d capacity=%d bits\n",
				filled, pool.Blocks(), st.Hits, st.Misses, st.Direct, st.Passes, st.Failures, st.Available)
		case <-sigCh:
			return
		case <-expire:
			return
		}
	}
}

func runSilent(duration time.Duration, sigCh chan os.Signal) {
	if duration > 0 {
		select {
		case <-time.After(duration):
		case <-sigCh:
		}
		return
	}
	<-sigCh
}
