// jent-feed fetches assessed seed blocks from the jitter entropy pool and
// writes them to a file or stdout. Pointing -out at /dev/urandom feeds the
// host PRNG at boot, the way one-shot haveged runs are used.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bukka/lrng/internal/config"
	"github.com/bukka/lrng/internal/espool"
	"github.com/bukka/lrng/internal/jitter"
	"github.com/bukka/lrng/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	count := flag.Int("n", 1, "Number of seed blocks to fetch")
	outPath := flag.String("out", "", "Output file (default stdout; e.g. /dev/urandom)")
	hexOut := flag.Bool("hex", false, "Hex-encode output, one block per line")
	syncOnly := flag.Bool("sync", false, "Force the synchronous path (no slot pool)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("jent-feed version %s\n", version.String())
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
	if *syncOnly {
		cfg.Pool.Async = false
	}

	src, err := jitter.NewTimerSource(cfg.Source.Calibration.Duration)
	if err != nil {
		log.Fatalf("Timer source unavailable: %v", err)
	}

	pool, err := espool.New(cfg, jitter.NewLocked(src), nil)
	if err != nil {
		log.Fatalf("Failed to build pool: %v", err)
	}
	defer pool.Wipe()

	out := os.Stdout
	if *outPath != "" {
		f, err := os.OpenFile(*outPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			log.Fatalf("Failed to open output: %v", err)
		}
		defer f.Close()
		out = f
	}

	// Give the initial refill pass a moment so fetches hit the pool rather
	// than all falling back. Purely opportunistic: a miss still delivers.
	if pool.AsyncEnabled() {
		time.Sleep(50 * time.Millisecond)
	}

	for i := 0; i < *count; i++ {
		data, bits := pool.Fetch(pool.SeedBitsOSR(), !*syncOnly)
		if bits == 0 {
			fmt.Fprintf(os.Stderr, "block %d: zero assessed entropy\n", i)
		}
		if *hexOut {
			if _, err := fmt.Fprintf(out, "%s\n", hex.EncodeToString(data)); err != nil {
				log.Fatalf("Write failed: %v", err)
			}
			continue
		}
		if _, err := out.Write(data); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
}
