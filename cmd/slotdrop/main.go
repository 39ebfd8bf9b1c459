package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"slotdrop/internal/db"
	"slotdrop/internal/server"
)

// options holds everything main resolves from flags and the environment.
type options struct {
	server      server.Config
	databaseURL string
}

// parseOptions reads flags from args. Flag defaults come from the
// environment, so either source works and flags win.
func parseOptions(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("slotdrop", pflag.ContinueOnError)
	fs.StringVar(&opts.server.Addr, "addr", getenvDefault("SLOTDROP_ADDR", ":8888"), "listen address")
	fs.StringVar(&opts.server.DataDir, "data-dir", getenvDefault("SLOTDROP_DATA_DIR", "./data"), "directory holding the stored artifact")
	fs.StringVar(&opts.server.SlotName, "slot-name", getenvDefault("SLOTDROP_SLOT_NAME", "test.png"), "file name of the stored artifact")
	fs.StringVar(&opts.server.ContentType, "content-type", getenvDefault("SLOTDROP_CONTENT_TYPE", "image/png"), "content type the artifact is served with")
	fs.StringVar(&opts.databaseURL, "database-url", getenvDefault("DATABASE_URL", ""), "Postgres URL for the install audit ledger (optional)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	opts.server.Build = server.BuildInfo{
		Version: getenvDefault("SLOTDROP_VERSION", "dev"),
		Commit:  getenvDefault("SLOTDROP_COMMIT", "unknown"),
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Printf("service=slotdrop msg=%q err=%v", "bad_flags", err)
		os.Exit(2)
	}

	if err := server.ValidateConfig(opts.server, opts.databaseURL); err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(1)
	}

	if opts.databaseURL != "" {
		dbConn, err := server.OpenDB(opts.databaseURL)
		if err != nil {
			log.Printf("service=slotdrop msg=%q err=%v", "db_connect_failed", err)
			os.Exit(1)
		}
		defer func() { _ = dbConn.Close() }()

		log.Printf("service=slotdrop msg=%q", "running_migrations")
		if err := db.RunMigrations(dbConn); err != nil {
			log.Printf("service=slotdrop msg=%q err=%v", "migration_failed", err)
			os.Exit(1)
		}
		opts.server.DB = dbConn
	}

	if mc, ok := server.LoadMirrorConfig(); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mirror, err := server.NewMirror(ctx, mc, opts.server.SlotName)
		cancel()
		if err != nil {
			log.Printf("service=slotdrop msg=%q err=%v", "mirror_init_failed", err)
			os.Exit(1)
		}
		opts.server.Mirror = mirror
	}

	srv, err := server.New(opts.server)
	if err != nil {
		log.Printf("service=slotdrop msg=%q err=%v", "init_failed", err)
		os.Exit(1)
	}

	if opts.server.Mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		restored, err := opts.server.Mirror.Restore(ctx, srv.Slot())
		cancel()
		if err != nil {
			log.Printf("service=slotdrop msg=%q err=%v", "mirror_restore_failed", err)
		} else if restored {
			log.Printf("service=slotdrop msg=%q", "artifact_restored_from_mirror")
		}
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go server.StartSweeper(bgCtx, srv.Slot(), server.GetSweepConfigFromEnv())

	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=slotdrop msg=%q addr=%s slot=%s version=%s commit=%s",
			"starting", opts.server.Addr, srv.Slot().Path(), opts.server.Build.Version, opts.server.Build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=slotdrop msg=%q signal=%s", "shutting_down", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=slotdrop msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		if opts.server.Mirror != nil {
			opts.server.Mirror.Wait()
		}
		log.Printf("service=slotdrop msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("service=slotdrop msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
