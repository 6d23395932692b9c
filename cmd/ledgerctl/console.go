package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/amirasaad/usdledger/pkg/domain/transaction"
	"github.com/amirasaad/usdledger/pkg/money"
	feesvc "github.com/amirasaad/usdledger/pkg/service/fee"
	"github.com/amirasaad/usdledger/pkg/service/monitor"
	"github.com/amirasaad/usdledger/pkg/service/reconciliation"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultAlertLimit = 50

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
)

type console struct {
	out     io.Writer
	fees    *feesvc.Engine
	monitor *monitor.Service
}

func (c *console) table() *tabwriter.Writer {
	return tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
}

func (c *console) feesCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: fees needs list or set", errUsage)
	}
	switch args[0] {
	case "list":
		return c.listFees(ctx)
	case "set":
		if len(args) != 4 {
			return fmt.Errorf("%w: fees set <type> <flat> <pct>", errUsage)
		}
		flat, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("%w: flat fee %q is not a number", errUsage, args[2])
		}
		pct, err := decimal.NewFromString(args[3])
		if err != nil {
			return fmt.Errorf("%w: percentage %q is not a number", errUsage, args[3])
		}
		f, err := c.fees.Set(ctx, transaction.Type(args[1]), flat, pct)
		if err != nil {
			return err
		}
		okColor.Fprintf(c.out, "%s fee set to %s + %s%%\n", f.Type, money.Format(f.Flat), f.Percentage.String()) //nolint:errcheck
		return nil
	default:
		return fmt.Errorf("%w: unknown fees action %q", errUsage, args[0])
	}
}

func (c *console) listFees(ctx context.Context) error {
	fees, err := c.fees.List(ctx)
	if err != nil {
		return err
	}
	w := c.table()
	headColor.Fprintln(w, "TYPE\tFLAT\tPERCENT\tUPDATED") //nolint:errcheck
	for _, f := range fees {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Type, money.Format(f.Flat), f.Percentage.String(),
			f.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (c *console) alertsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: alerts needs list or review", errUsage)
	}
	switch args[0] {
	case "list":
		all := false
		limit := defaultAlertLimit
		for _, a := range args[1:] {
			if a == "--all" {
				all = true
				continue
			}
			n, err := strconv.Atoi(a)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: limit must be a positive integer", errUsage)
			}
			limit = n
		}
		return c.listAlerts(ctx, !all, limit)
	case "review":
		if len(args) != 2 {
			return fmt.Errorf("%w: alerts review <id>", errUsage)
		}
		id, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("%w: %q is not an alert id", errUsage, args[1])
		}
		if err := c.monitor.Review(ctx, id); err != nil {
			return err
		}
		okColor.Fprintf(c.out, "alert %s reviewed\n", id) //nolint:errcheck
		return nil
	default:
		return fmt.Errorf("%w: unknown alerts action %q", errUsage, args[0])
	}
}

func (c *console) listAlerts(ctx context.Context, onlyUnreviewed bool, limit int) error {
	alerts, err := c.monitor.Alerts(ctx, onlyUnreviewed, limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		okColor.Fprintln(c.out, "no alerts") //nolint:errcheck
		return nil
	}
	w := c.table()
	headColor.Fprintln(w, "ID\tTRANSACTION\tREVIEWED\tCREATED\tFLAGS") //nolint:errcheck
	for _, a := range alerts {
		reviewed := failColor.Sprint("no")
		if a.Reviewed {
			reviewed = okColor.Sprint("yes")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.TransactionID, reviewed,
			a.CreatedAt.Format("2006-01-02 15:04"), strings.Join(a.Flags, "; "))
	}
	return w.Flush()
}

type reconciler interface {
	Check(ctx context.Context, tolerance decimal.Decimal) (reconciliation.Report, error)
	ReportDiscrepancy(ctx context.Context, r reconciliation.Report)
	Tolerance() decimal.Decimal
}

// reconcile prints the figures and raises the discrepancy alert when the
// ledger and the rails disagree.
func reconcile(ctx context.Context, out io.Writer, svc reconciler) error {
	r, err := svc.Check(ctx, svc.Tolerance())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "ledger total   %s USD\n", money.Format(r.Ledger))
	fmt.Fprintf(out, "pooled balance %s USD\n", money.Format(r.Actual))
	fmt.Fprintf(out, "difference     %s USD (tolerance %s)\n", r.Difference.String(), r.Tolerance.String())
	if r.Balanced {
		okColor.Fprintln(out, "balanced") //nolint:errcheck
		return nil
	}
	svc.ReportDiscrepancy(ctx, r)
	failColor.Fprintln(out, "DISCREPANCY") //nolint:errcheck
	return fmt.Errorf("ledger and gateways differ by %s USD", r.Difference.String())
}
