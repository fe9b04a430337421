// Command orahost runs a WASI guest module and serves the HTTP handlers it
// registers. The guest's SQL requests run on an Oracle database through
// godror (or go-ora), or on SQLite for local development.
//
//	orahost -wasm app.wasm -driver godror -dsn 'user/pass@db:1521/ORCLPDB1'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/godror/godror"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/sijms/go-ora/v2"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tomyedwab/oracledb/internal/auth"
	"github.com/tomyedwab/oracledb/sqlproxy/host"
	"github.com/tomyedwab/oracledb/udt/godrorudt"
)

func main() {
	wasmFile := flag.String("wasm", "", "Path to the WASM file to load")
	driverName := flag.String("driver", "godror", "database/sql driver: godror, oracle (go-ora) or sqlite3")
	dsn := flag.String("dsn", "", "Data source name for the driver")
	port := flag.Int("port", 8080, "Port for the HTTP server")
	jwtSecretPath := flag.String("jwtSecretPath", "/tmp/jwtsecret.key", "Path to the JWT signing key, created if missing")
	issueToken := flag.String("issueToken", "", "Print a token for the given profile and exit")
	debug := flag.Bool("debug", false, "Log every SQL request")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, config{
		wasmFile:      *wasmFile,
		driverName:    *driverName,
		dsn:           *dsn,
		port:          *port,
		jwtSecretPath: *jwtSecretPath,
		issueToken:    *issueToken,
	}); err != nil {
		logger.Error("orahost failed", "error", err)
		os.Exit(1)
	}
}

type config struct {
	wasmFile      string
	driverName    string
	dsn           string
	port          int
	jwtSecretPath string
	issueToken    string
}

func run(logger *slog.Logger, cfg config) error {
	key, err := auth.LoadJWTSecretKey(cfg.jwtSecretPath)
	if err != nil {
		return err
	}
	if cfg.issueToken != "" {
		now := time.Now()
		token, err := auth.IssueToken(key, auth.Claims{
			IssuedAt: now.Unix(),
			Expiry:   now.Add(24 * time.Hour).Unix(),
			Profile:  cfg.issueToken,
		})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	if cfg.wasmFile == "" {
		return fmt.Errorf("WASM file path must be provided via -wasm flag")
	}
	if cfg.dsn == "" {
		return fmt.Errorf("data source name must be provided via -dsn flag")
	}
	wasmBytes, err := os.ReadFile(cfg.wasmFile)
	if err != nil {
		return fmt.Errorf("failed to read WASM file %s: %w", cfg.wasmFile, err)
	}

	db, err := host.Open(cfg.driverName, cfg.dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	g := &guestHost{
		logger: logger,
		sqlHost: host.NewSQLHost(db,
			host.WithResultProcessor(host.OracleProcessor{Adapt: godrorudt.Adapt}),
			host.WithLogger(logger),
		),
		mux: http.NewServeMux(),
		middleware: []func(http.HandlerFunc) http.HandlerFunc{
			auth.LoginRequired(key),
			auth.LogRequests(logger),
		},
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	if err := g.instantiate(ctx, r); err != nil {
		return fmt.Errorf("failed to instantiate host module: %w", err)
	}

	// Instantiating the guest runs its _initialize function, which registers
	// its handlers.
	_, err = r.InstantiateWithConfig(
		ctx,
		wasmBytes,
		wazero.NewModuleConfig().
			WithStartFunctions("_initialize").
			WithStdout(os.Stdout).
			WithStderr(os.Stderr).
			WithSysWalltime(),
	)
	if err != nil {
		return fmt.Errorf("failed to instantiate guest: %w", err)
	}

	listenAddr := fmt.Sprintf(":%d", cfg.port)
	logger.Info("starting server", "addr", listenAddr, "driver", cfg.driverName)
	return http.ListenAndServe(listenAddr, g.mux)
}
