// Command ledgerctl is the operator tool: schema migrations, on-demand
// reconciliation, fee schedules and monitor alerts.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/amirasaad/usdledger/infra"
	"github.com/amirasaad/usdledger/infra/initializer"
	infrarepo "github.com/amirasaad/usdledger/infra/repository"
	"github.com/amirasaad/usdledger/internal/migrations"
	"github.com/amirasaad/usdledger/pkg/config"
	"github.com/amirasaad/usdledger/pkg/provider/notification"
	feesvc "github.com/amirasaad/usdledger/pkg/service/fee"
	"github.com/amirasaad/usdledger/pkg/service/monitor"
	"github.com/fatih/color"
)

const usage = `usage: ledgerctl <command> [arguments]

commands:
  migrate up|down <n>|version     manage the database schema
  reconcile                       compare the ledger with the gateways' pooled balances
  fees list                       show active fee schedules
  fees set <type> <flat> <pct>    replace the schedule of a transaction type
  alerts list [--all] [limit]     show monitor alerts, unreviewed only by default
  alerts review <id>              mark an alert as reviewed
`

var errUsage = errors.New("invalid arguments")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "error:", err) //nolint:errcheck
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := initializer.NewLogger(cfg.Log, os.Stderr)

	if args[0] == "reconcile" {
		res, err := initializer.Initialize(ctx, cfg)
		if err != nil {
			return err
		}
		defer res.Close() //nolint:errcheck
		return reconcile(ctx, out, res.App.Reconciliation)
	}

	dbCfg := *cfg.DB
	dbCfg.AutoMigrate = false
	db, err := infra.NewDBConnection(&dbCfg, cfg.Env)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close() //nolint:errcheck

	uow := infrarepo.NewUoW(db)
	c := &console{
		out:     out,
		fees:    feesvc.New(uow, logger),
		monitor: monitor.New(uow, notification.NewLogNotifier(logger), monitor.ConfigFrom(cfg.Monitor), logger),
	}

	switch args[0] {
	case "migrate":
		return migrate(out, args[1:], sqlDB)
	case "fees":
		return c.feesCmd(ctx, args[1:])
	case "alerts":
		return c.alertsCmd(ctx, args[1:])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

type schema interface {
	up() error
	down(n int) error
	version() (uint, bool, error)
}

type sqlSchema struct{ db *sql.DB }

func (s sqlSchema) up() error                    { return migrations.Up(s.db) }
func (s sqlSchema) down(n int) error             { return migrations.Down(s.db, n) }
func (s sqlSchema) version() (uint, bool, error) { return migrations.Version(s.db) }

func migrate(out io.Writer, args []string, db *sql.DB) error {
	return migrateWith(out, args, sqlSchema{db})
}

func migrateWith(out io.Writer, args []string, s schema) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migrate needs up, down or version", errUsage)
	}
	switch args[0] {
	case "up":
		if err := s.up(); err != nil {
			return err
		}
	case "down":
		if len(args) != 2 {
			return fmt.Errorf("%w: migrate down <n>", errUsage)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: step count must be a positive integer", errUsage)
		}
		if err := s.down(n); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("%w: unknown migrate action %q", errUsage, args[0])
	}
	v, dirty, err := s.version()
	if err != nil {
		return err
	}
	state := color.GreenString("clean")
	if dirty {
		state = color.RedString("dirty")
	}
	fmt.Fprintf(out, "schema version %d (%s)\n", v, state)
	return nil
}
