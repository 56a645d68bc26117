package rabbitmq

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueConfig_Arguments(t *testing.T) {
	tests := []struct {
		name     string
		queue    QueueConfig
		expected amqp.Table
	}{
		{
			name:     "plain queue",
			queue:    QueueConfig{Name: "pdf.jobs.status", BindingKey: "job.status.#"},
			expected: nil,
		},
		{
			name: "dead letter exchange with routing key",
			queue: QueueConfig{
				Name:                 "pdf.jobs.submitted",
				BindingKey:           "job.submitted.#",
				DeadLetterExchange:   "pdf.jobs",
				DeadLetterRoutingKey: "job.dead-letter.rejected",
			},
			expected: amqp.Table{
				"x-dead-letter-exchange":    "pdf.jobs",
				"x-dead-letter-routing-key": "job.dead-letter.rejected",
			},
		},
		{
			name:     "dead letter exchange only",
			queue:    QueueConfig{Name: "q", DeadLetterExchange: "dlx"},
			expected: amqp.Table{"x-dead-letter-exchange": "dlx"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.queue.arguments())
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDelay(0, 0, 0))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(100*time.Millisecond, 2, 2))
	assert.Equal(t, 90*time.Millisecond, backoffDelay(10*time.Millisecond, 3, 2))
}

func TestClient_NotConnected(t *testing.T) {
	c := &Client{config: &Config{}}

	err := c.Publish(context.Background(), Message{RoutingKey: "job.status.1"})
	require.ErrorIs(t, err, ErrNotConnected)

	err = c.PublishWithRetry(context.Background(), Message{RoutingKey: "job.status.1"})
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Consume("pdf.jobs.submitted", "worker")
	require.ErrorIs(t, err, ErrNotConnected)

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)
}
