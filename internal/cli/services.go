package cli

import (
	"context"
	"fmt"
	"log/slog"

	"clientes-service/internal/config"
	"clientes-service/internal/domain/customer"
	"clientes-service/internal/event"
	"clientes-service/internal/infrastructure/database/postgres"
)

// DefaultServiceFactory wires the same repository and service the HTTP server
// uses, so CLI edits take the same row locks and publish the same events.
func DefaultServiceFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (customer.CustomerService, func(), error) {
	deleteMode, err := customer.ParseLockMode(cfg.Customers.DeleteLockMode)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid customers.deleteLockMode: %w", err)
	}

	pool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}

	publisher, closePublisher, err := event.Dial(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Warn("Change events disabled for this run", slog.Any("error", err))
		publisher, closePublisher = event.NoopPublisher{}, func() {}
	}

	repo := postgres.NewCustomerRepository(pool, logger, postgres.WithLockTimeout(cfg.Customers.LockTimeout))
	svc := customer.NewCustomerService(repo, logger,
		customer.WithEventPublisher(publisher),
		customer.WithDeleteLockMode(deleteMode),
	)

	closeFn := func() {
		closePublisher()
		pool.Close()
	}
	return svc, closeFn, nil
}
