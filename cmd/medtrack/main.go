package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gmsas95/medtrack/internal/app"
	"github.com/gmsas95/medtrack/internal/config"
	"github.com/gmsas95/medtrack/internal/export"
	"github.com/gmsas95/medtrack/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Printf("MedTrack version %s\n", version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "export":
			os.Exit(runExport(os.Args[2:]))
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	flag.Parse()

	application, cleanup := initApp(*configPath, *dataDir)
	defer cleanup()

	if err := application.RunServer(context.Background()); err != nil {
		application.Logger.Error("Server error", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to config file")
	data := fs.String("data", "", "Path to data directory")
	email := fs.String("email", "", "Account e-mail")
	format := fs.String("format", string(export.FormatCSV), "Report format: csv, pdf or xlsx")
	rangeKind := fs.String("range", string(export.RangeLastDays), "Date range: last_days, all or custom")
	days := fs.String("days", "", "Days for the last_days range")
	start := fs.String("start", "", "Start date (YYYY-MM-DD) for a custom range")
	end := fs.String("end", "", "End date (YYYY-MM-DD) for a custom range")
	output := fs.String("o", "", "Output file or directory (default stdout)")
	_ = fs.Parse(args)

	if *email == "" {
		fmt.Fprintln(os.Stderr, "export: -email is required")
		fs.Usage()
		return 2
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return 2
	}
	r, err := export.ParseRange(*rangeKind, *days, *start, *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return 2
	}

	application, cleanup := initApp(*cfgPath, *data)
	defer cleanup()

	path, err := application.RunExport(context.Background(), app.ExportOptions{
		Email:  *email,
		Format: f,
		Range:  r,
		Output: *output,
	}, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		return 1
	}
	if path != "" {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
	}
	return 0
}

func initApp(cfgPath, data string) (*app.App, func()) {
	cfg, err := config.Load(cfgPath, data)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Info("Starting MedTrack",
		zap.String("version", version),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	st, err := store.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return app.New(cfg, st, logger, version), cleanup
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

func printHelp() {
	fmt.Println("MedTrack - medication adherence tracker")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  medtrack [serve] [-config path] [-data dir]   Run the HTTP API")
	fmt.Println("  medtrack export -email addr [flags]           Write a dose report")
	fmt.Println("  medtrack version                              Print the version")
	fmt.Println()
	fmt.Println("Run 'medtrack export -h' for export flags.")
}
