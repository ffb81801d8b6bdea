package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"clientes-service/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	keys       []string
	publishErr error
	closed     int
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed++
	return nil
}

type fakeOpener struct {
	ch  *fakeChannel
	err error
}

func (o *fakeOpener) openChannel() (amqpChannel, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.ch, nil
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewPublisher(t *testing.T) {
	t.Run("Declares topic exchange", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newPublisher(&fakeOpener{ch: ch}, "clientes", testLogger)

		require.NoError(t, err)
		assert.NotNil(t, p)
		assert.Equal(t, []string{"clientes:topic"}, ch.declared)
		assert.Equal(t, 1, ch.closed)
	})

	t.Run("Error - Empty exchange", func(t *testing.T) {
		_, err := newPublisher(&fakeOpener{ch: &fakeChannel{}}, "", testLogger)
		assert.EqualError(t, err, "RabbitMQ exchange name cannot be empty")
	})

	t.Run("Error - Channel unavailable", func(t *testing.T) {
		_, err := newPublisher(&fakeOpener{err: errors.New("connection closed")}, "clientes", testLogger)
		assert.ErrorContains(t, err, "failed to open temporary channel")
	})

	t.Run("Error - Nil connection", func(t *testing.T) {
		_, err := NewRabbitMQEventPublisher(nil, "clientes", testLogger)
		assert.Error(t, err)
	})
}

func TestRabbitMQEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("Customer created", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newPublisher(&fakeOpener{ch: ch}, "clientes", testLogger)
		require.NoError(t, err)

		evt := NewCustomerCreatedEvent(CustomerEventPayload{CustomerID: 1, Name: "Ana", CreditLimit: "1000.00"})
		require.NoError(t, p.PublishCustomerCreated(ctx, evt))

		require.Len(t, ch.published, 1)
		msg := ch.published[0]
		assert.Equal(t, routingKeyCustomerCreated, ch.keys[0])
		assert.Equal(t, "application/json", msg.ContentType)
		assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
		assert.Equal(t, publisherAppID, msg.AppId)
		assert.Equal(t, evt.EventID, msg.MessageId)

		var decoded CustomerCreatedEvent
		require.NoError(t, json.Unmarshal(msg.Body, &decoded))
		assert.Equal(t, int64(1), decoded.Payload.CustomerID)
		assert.Equal(t, "1000.00", decoded.Payload.CreditLimit)
	})

	t.Run("Customer updated and deleted use their own routing keys", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newPublisher(&fakeOpener{ch: ch}, "clientes", testLogger)
		require.NoError(t, err)

		require.NoError(t, p.PublishCustomerUpdated(ctx, NewCustomerUpdatedEvent(CustomerEventPayload{CustomerID: 2})))
		require.NoError(t, p.PublishCustomerDeleted(ctx, NewCustomerDeletedEvent(2)))

		assert.Equal(t, []string{routingKeyCustomerUpdated, routingKeyCustomerDeleted}, ch.keys)
	})

	t.Run("Error - Publish failure is returned", func(t *testing.T) {
		ch := &fakeChannel{}
		p, err := newPublisher(&fakeOpener{ch: ch}, "clientes", testLogger)
		require.NoError(t, err)
		ch.publishErr = errors.New("channel closed")

		err = p.PublishCustomerDeleted(ctx, NewCustomerDeletedEvent(3))
		assert.ErrorContains(t, err, "failed to publish message")
	})
}

func TestNoopPublisher(t *testing.T) {
	var p EventPublisher = NoopPublisher{}
	ctx := context.Background()

	assert.NoError(t, p.PublishCustomerCreated(ctx, CustomerCreatedEvent{}))
	assert.NoError(t, p.PublishCustomerUpdated(ctx, CustomerUpdatedEvent{}))
	assert.NoError(t, p.PublishCustomerDeleted(ctx, CustomerDeletedEvent{}))
}

func TestDial(t *testing.T) {
	t.Run("Disabled returns a noop publisher", func(t *testing.T) {
		pub, closeFn, err := Dial(config.RabbitMQConfig{Enabled: false}, testLogger)
		require.NoError(t, err)
		assert.IsType(t, NoopPublisher{}, pub)
		assert.NotPanics(t, closeFn)
	})

	t.Run("Unreachable broker", func(t *testing.T) {
		cfg := config.RabbitMQConfig{Enabled: true, Host: "127.0.0.1", Port: 1, Username: "guest", Password: "guest", ExchangeName: "clientes"}

		pub, closeFn, err := Dial(cfg, testLogger)
		require.Error(t, err)
		assert.Nil(t, pub)
		assert.Nil(t, closeFn)
		assert.Contains(t, err.Error(), "failed to connect to RabbitMQ")
	})
}
