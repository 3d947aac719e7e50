package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/erp/receivables/internal/infrastructure/config"
	"github.com/erp/receivables/internal/infrastructure/exchangerate"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/infrastructure/migration"
	"github.com/erp/receivables/internal/infrastructure/persistence"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		dir      string
		logLevel string
		embedded bool
	)
	flag.StringVar(&dir, "path", "", "migrations directory (default: database.migrations_path)")
	flag.BoolVar(&embedded, "embedded", false, "use the migrations compiled into the binary")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if dir == "" && !embedded {
		dir = cfg.Database.MigrationsPath
	}
	if embedded {
		dir = ""
	}

	if err := run(cfg, dir, args, log); err != nil {
		log.Fatal("Command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func run(cfg *config.Config, dir string, args []string, log *zap.Logger) error {
	switch args[0] {
	case "create":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate create <name> [description]")
		}
		desc := ""
		if len(args) > 2 {
			desc = args[2]
		}
		target := dir
		if target == "" {
			target = "migrations"
		}
		nm, err := migration.Create(target, args[1], desc, time.Now())
		if err != nil {
			return err
		}
		log.Info("Migration created", zap.String("up", nm.UpPath), zap.String("down", nm.DownPath))
		return nil
	case "list":
		var names []string
		var err error
		if dir == "" {
			names, err = migration.EmbeddedVersions()
		} else {
			names, err = migration.List(dir)
		}
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	case "seed-rates":
		return seedRates(cfg, args[1:], log)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m, err := migration.New(db, dir, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Close migrator", zap.Error(err))
		}
	}()

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "force":
		v, err := intArg(args, "force")
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		st, err := m.Status()
		if err != nil {
			return err
		}
		if !st.Applied {
			fmt.Println("no migrations applied")
			return nil
		}
		fmt.Printf("version %d dirty=%t\n", st.Version, st.Dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// seedRates upserts the rates of a YAML rate file into the currencies table
func seedRates(cfg *config.Config, args []string, log *zap.Logger) error {
	path := cfg.Currency.RatesFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("usage: migrate seed-rates <rates.yaml>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rate file: %w", err)
	}
	base, err := valueobject.ParseCurrency(cfg.Currency.Base)
	if err != nil {
		return err
	}

	database, err := persistence.NewDatabase(&cfg.Database, nil)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := exchangerate.SeedFromFile(ctx, persistence.NewGormExchangeRateRepository(database.DB), data, base)
	if err != nil {
		return err
	}
	log.Info("Exchange rates seeded", zap.String("file", path), zap.Int("currencies", n))
	return nil
}

func intArg(args []string, cmd string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: migrate %s <n>", cmd)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[1], err)
	}
	return n, nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: migrate [flags] <command> [args]

Commands:
  up                         apply all pending migrations
  down                       roll back the last migration
  step <n>                   apply n migrations (negative rolls back)
  version                    print the current schema version
  force <version>            set the version without running migrations
  create <name> [desc]       create an empty up/down pair
  list                       list available migrations
  seed-rates [rates.yaml]    load exchange rates into the currencies table

Flags:
`)
	flag.PrintDefaults()
}
