package server

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepConfig controls removal of abandoned staging files.
type SweepConfig struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// GetSweepConfigFromEnv reads SLOTDROP_SWEEP_INTERVAL and
// SLOTDROP_SWEEP_MAX_AGE, falling back to 10m and 1h.
func GetSweepConfigFromEnv() SweepConfig {
	cfg := SweepConfig{Interval: 10 * time.Minute, MaxAge: time.Hour}
	if v := os.Getenv("SLOTDROP_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Interval = d
		}
	}
	if v := os.Getenv("SLOTDROP_SWEEP_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.MaxAge = d
		}
	}
	return cfg
}

// StartSweeper removes staging files left in the slot directory by crashed
// or killed uploads. It runs once immediately, then every Interval until ctx
// is cancelled.
func StartSweeper(ctx context.Context, slot *Slot, cfg SweepConfig) {
	log.Printf("service=sweeper msg=%q interval=%s max_age=%s", "starting", cfg.Interval, cfg.MaxAge)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sweepStaging(slot, cfg.MaxAge, time.Now())
	for {
		select {
		case <-ctx.Done():
			log.Printf("service=sweeper msg=%q", "shutting_down")
			return
		case now := <-ticker.C:
			sweepStaging(slot, cfg.MaxAge, now)
		}
	}
}

// sweepStaging deletes staging files not modified within maxAge of now and
// returns how many were removed. The artifact itself is never touched.
func sweepStaging(slot *Slot, maxAge time.Duration, now time.Time) int {
	entries, err := os.ReadDir(slot.Dir())
	if err != nil {
		log.Printf("service=sweeper msg=%q err=%v", "read_dir_failed", err)
		return 0
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(slot.Dir(), e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("service=sweeper msg=%q file=%s err=%v", "remove_failed", e.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("service=sweeper msg=%q removed=%d", "sweep_complete", removed)
	}
	return removed
}
