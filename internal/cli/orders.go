package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/workorders/internal/app"
	"github.com/Additional-Code/workorders/internal/entity"
	ordersvc "github.com/Additional-Code/workorders/internal/service/order"
)

var statusColors = map[entity.Status]color.Attribute{
	entity.StatusOpen:       color.FgCyan,
	entity.StatusInProgress: color.FgYellow,
	entity.StatusFulfilled:  color.FgGreen,
	entity.StatusClosed:     color.FgBlue,
}

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and move work orders",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			return withOrderService(cmd.Context(), func(ctx context.Context, svc *ordersvc.Service) error {
				orders, err := svc.List(ctx, status)
				if err != nil {
					return err
				}
				printOrders(cmd.OutOrStdout(), orders)
				return nil
			})
		},
	}
	listCmd.Flags().String("status", "", "Only show orders in this status (open, in_progress, fulfilled, closed)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one work order and the moves available to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			return withOrderService(cmd.Context(), func(ctx context.Context, svc *ordersvc.Service) error {
				order, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				printOrder(cmd.OutOrStdout(), order)
				return nil
			})
		},
	}

	transitionCmd := &cobra.Command{
		Use:   "transition <id> <status>",
		Short: "Move a work order to an adjacent status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			return withOrderService(cmd.Context(), func(ctx context.Context, svc *ordersvc.Service) error {
				res, err := svc.ChangeStatus(ctx, id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprint(res.Message))
				return nil
			})
		},
	}

	statusesCmd := &cobra.Command{
		Use:   "statuses",
		Short: "Print the status lifecycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			printLifecycle(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd, transitionCmd, statusesCmd)
	return cmd
}

func withOrderService(ctx context.Context, fn func(context.Context, *ordersvc.Service) error) error {
	var svc *ordersvc.Service
	opts := fx.Options(app.Core, fx.Populate(&svc))
	return runWithApp(ctx, opts, func(ctx context.Context) error {
		return fn(ctx, svc)
	})
}

func parseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", raw)
	}
	return id, nil
}

func statusText(s entity.Status) string {
	attr, ok := statusColors[s]
	if !ok {
		return s.Label()
	}
	return color.New(attr).Sprint(s.Label())
}

func printOrders(w io.Writer, orders []entity.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "no work orders")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tLIST\tDESIRED\tACTUAL\tSTATUS")
	for i := range orders {
		o := &orders[i]
		actual := "-"
		if o.ActualQuantity != nil {
			actual = strconv.FormatInt(*o.ActualQuantity, 10)
			if o.UnderQuantity() {
				actual = color.New(color.FgRed).Sprint(actual + " (under)")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			o.ID, o.CustomerName(), o.ListCode(), o.DesiredQuantity, actual, statusText(o.Status))
	}
	_ = tw.Flush()
}

func printOrder(w io.Writer, o *entity.Order) {
	ref := "-"
	if o.ExternalRef != nil {
		ref = *o.ExternalRef
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Order\t#%d\n", o.ID)
	fmt.Fprintf(tw, "Customer\t%s\n", o.CustomerName())
	fmt.Fprintf(tw, "List\t%s (%s)\n", o.DatabaseName(), o.ListCode())
	fmt.Fprintf(tw, "Reference\t%s\n", ref)
	fmt.Fprintf(tw, "Description\t%s\n", o.ListDescription)
	fmt.Fprintf(tw, "Desired\t%d\n", o.DesiredQuantity)
	if o.ActualQuantity != nil {
		fmt.Fprintf(tw, "Actual\t%d\n", *o.ActualQuantity)
	}
	fmt.Fprintf(tw, "Status\t%s\n", statusText(o.Status))
	fmt.Fprintf(tw, "Updated\t%s\n", o.UpdatedAt.Format("2006-01-02 15:04:05"))
	if o.ClosedAt != nil {
		fmt.Fprintf(tw, "Closed\t%s\n", o.ClosedAt.Format("2006-01-02 15:04:05"))
	}
	_ = tw.Flush()

	if o.UnderQuantity() {
		fmt.Fprintln(w, color.New(color.FgRed).Sprint("warning: actual quantity is below the desired quantity"))
	}
	for _, t := range o.Status.Transitions() {
		fmt.Fprintf(w, "  %s -> %s\n", t.Action, t.To)
	}
}

func printLifecycle(w io.Writer) {
	for _, s := range entity.Statuses {
		fmt.Fprintf(w, "%s (%s)\n", statusText(s), s)
		for _, t := range s.Transitions() {
			fmt.Fprintf(w, "  %s -> %s\n", t.Action, t.To)
		}
	}
}
