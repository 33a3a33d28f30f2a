//go:build integration

package rabbitmq

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/bus"
	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbitMQ mirrors internal/adapters/postgres's setupPostgres: a
// disposable broker container per test via testcontainers.GenericContainer.
func setupRabbitMQ(t *testing.T) *Connection {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	dsn := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())

	conn, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestBus_PublishAndConsume(t *testing.T) {
	conn := setupRabbitMQ(t)
	b := NewBus(conn, nil)

	sub, err := b.CreateSubscriber("orders-test", "main.orders.#")
	require.NoError(t, err)

	received := make(chan bus.Delivery, 1)
	sub.Subscribe(func(_ context.Context, d bus.Delivery) error {
		received <- d
		return nil
	})

	require.NoError(t, sub.StartConsuming(context.Background()))

	root := uuid.New()
	book := model.EventBook{
		Cover: model.Cover{Domain: "orders", Root: root, Edition: "main"},
		Pages: []model.EventPage{{Sequence: 0, Event: model.Payload{TypeURL: "OrderPlaced", Bytes: []byte("x")}}},
	}

	_, err = b.Publish(context.Background(), book)
	require.NoError(t, err)

	select {
	case d := <-received:
		assert.Equal(t, root, d.Book.Cover.Root)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestBus_DLQRoundTrip(t *testing.T) {
	conn := setupRabbitMQ(t)
	b := NewBus(conn, nil)

	received := make(chan bus.FailedDelivery, 1)
	require.NoError(t, b.SubscribeDLQ(func(_ context.Context, f bus.FailedDelivery) error {
		received <- f
		return nil
	}))

	failed := bus.FailedDelivery{Subscriber: "orders-test", Reason: "boom", Attempts: 3}
	require.NoError(t, b.SendToDLQ(context.Background(), failed))

	select {
	case f := <-received:
		assert.Equal(t, "boom", f.Reason)
		assert.Equal(t, 3, f.Attempts)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for dlq delivery")
	}
}
