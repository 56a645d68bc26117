package rabbitmq

import amqp "github.com/rabbitmq/amqp091-go"

// QueueConfig declares one durable queue bound to the exchange
type QueueConfig struct {
	Name       string
	BindingKey string
	Durable    bool

	// Rejected messages are re-routed here when set
	DeadLetterExchange   string
	DeadLetterRoutingKey string
}

func (q QueueConfig) arguments() amqp.Table {
	if q.DeadLetterExchange == "" {
		return nil
	}

	args := amqp.Table{"x-dead-letter-exchange": q.DeadLetterExchange}
	if q.DeadLetterRoutingKey != "" {
		args["x-dead-letter-routing-key"] = q.DeadLetterRoutingKey
	}
	return args
}
