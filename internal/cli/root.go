package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"clientes-service/internal/config"
	"clientes-service/internal/domain/customer"
	"clientes-service/internal/infrastructure/logging"

	"github.com/spf13/cobra"
)

// ServiceFactory builds the customer service for one CLI invocation. The
// returned func releases whatever the service holds open.
type ServiceFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (customer.CustomerService, func(), error)

type app struct {
	cfgFile string
	factory ServiceFactory
	in      io.Reader
	out     io.Writer
	errOut  io.Writer

	svc     customer.CustomerService
	closeFn func()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "clientesctl",
		Short: "Manage the clientes customer registry",
		Long: `clientesctl lists, creates, edits and deletes customers in the clientes table.

Edits are guarded: update only applies when the row still holds the values you
loaded, and fails fast when another writer is editing the same row.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.connect(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yml)")
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
	)
	return root
}

func (a *app) connect(ctx context.Context) error {
	cfg, err := config.LoadConfigFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewWriterLogger(cfg.Logger, a.errOut)
	svc, closeFn, err := a.factory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	a.svc = svc
	a.closeFn = closeFn
	return nil
}

func (a *app) close() {
	if a.closeFn != nil {
		a.closeFn()
		a.closeFn = nil
	}
}

// Run executes one clientesctl invocation and returns its process exit code.
func Run(ctx context.Context, args []string, factory ServiceFactory, in io.Reader, out, errOut io.Writer) int {
	a := &app{factory: factory, in: in, out: out, errOut: errOut}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
	}
	return ExitCode(err)
}

// Execute runs clientesctl against the real database using os.Args.
func Execute() int {
	return Run(context.Background(), os.Args[1:], DefaultServiceFactory, os.Stdin, os.Stdout, os.Stderr)
}
