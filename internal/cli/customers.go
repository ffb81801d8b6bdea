package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"clientes-service/internal/domain/customer"
	"clientes-service/internal/pkg/apperrors"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all customers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			customers, err := a.svc.ListAll(cmd.Context())
			if err != nil {
				return err
			}

			if len(customers) == 0 {
				fmt.Fprintln(a.out, "No customers found")
				return nil
			}
			printCustomers(a, customers...)
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			cust, err := a.svc.FetchByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			printCustomers(a, cust)
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "create <id> <name> <credit-limit>",
		Short:   "Create a customer",
		Example: `  clientesctl create 1 "Ana Maria" 1500.00`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			limit, err := customer.ParseCreditLimit(args[2])
			if err != nil {
				return err
			}

			created, err := a.svc.Create(cmd.Context(), &customer.Customer{ID: id, Name: args[1], CreditLimit: limit})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Customer %d created\n", created.ID)
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var name, limitRaw, expectedName, expectedLimitRaw string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a customer's name and credit limit",
		Long: `Edit a customer's name and credit limit.

The edit only applies if the row still holds the expected values. Pass them
with --expected-name and --expected-limit, or leave both out to load them
right before the edit.`,
		Example: `  clientesctl update 1 --name "Ana Maria" --limit 1200 --expected-name Ana --expected-limit 1000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			limit, err := customer.ParseCreditLimit(limitRaw)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			var expected customer.Snapshot
			switch {
			case flags.Changed("expected-name") && flags.Changed("expected-limit"):
				expected, err = customer.ParseSnapshot(expectedName, expectedLimitRaw)
				if err != nil {
					return err
				}
			case flags.Changed("expected-name") || flags.Changed("expected-limit"):
				return apperrors.NewValidationError("expected", "--expected-name and --expected-limit must be given together")
			default:
				current, err := a.svc.FetchByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				expected = current.Snapshot()
			}

			if err := a.svc.Update(cmd.Context(), id, name, limit, expected); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Customer %d updated\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new customer name")
	cmd.Flags().StringVar(&limitRaw, "limit", "", "new credit limit, e.g. 1500.00")
	cmd.Flags().StringVar(&expectedName, "expected-name", "", "name the row must still hold")
	cmd.Flags().StringVar(&expectedLimitRaw, "expected-limit", "", "credit limit the row must still hold")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("limit")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if !yes && !confirm(a, fmt.Sprintf("Are you sure you want to delete customer %d? (yes/no): ", id)) {
				fmt.Fprintln(a.out, "Cancelled")
				return nil
			}

			if err := a.svc.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Customer %d deleted\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("id", "must be an integer")
	}
	if err := customer.ValidateID(id); err != nil {
		return 0, err
	}
	return id, nil
}

func confirm(a *app, prompt string) bool {
	fmt.Fprint(a.out, prompt)
	scanner := bufio.NewScanner(a.in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "yes" || answer == "y"
}

func printCustomers(a *app, customers ...*customer.Customer) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREDIT LIMIT")
	for _, c := range customers {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, customer.FormatCreditLimit(c.CreditLimit))
	}
	w.Flush()
}
