// Package amqp consumes order lifecycle events from RabbitMQ and feeds
// them to the dispatcher.
package amqp

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/quickbite/dispatch/infra/logger"
)

// Exchange and queue names shared with the order service.
const (
	ordersExchange  = "orders_topic"
	readyQueue      = "dispatch_order_ready"
	readyRoutingKey = "order.ready"
)

// Connection wraps a RabbitMQ connection with retry and topology setup.
type Connection struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	log     logger.Logger
	url     string
}

// Dial establishes a connection and declares the dispatch topology.
func Dial(url string, log logger.Logger) (*Connection, error) {
	c := &Connection{log: log, url: url}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	return c, nil
}

func (c *Connection) connect() error {
	const maxRetries = 5
	var err error
	for i := 0; i < maxRetries; i++ {
		c.conn, err = amqp091.Dial(c.url)
		if err == nil {
			c.channel, err = c.conn.Channel()
			if err == nil {
				if setupErr := c.setupTopology(); setupErr != nil {
					_ = c.close()
					err = setupErr
				} else {
					return nil
				}
			} else {
				_ = c.conn.Close()
			}
		}
		if i < maxRetries-1 {
			wait := time.Duration(i+1) * 2 * time.Second
			c.log.Warnf("rabbitmq connect failed, retrying in %v: %v", wait, err)
			time.Sleep(wait)
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxRetries, err)
}

// setupTopology declares the exchange and binds the dispatch queue.
func (c *Connection) setupTopology() error {
	if err := c.channel.ExchangeDeclare(ordersExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", ordersExchange, err)
	}
	if _, err := c.channel.QueueDeclare(readyQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", readyQueue, err)
	}
	if err := c.channel.QueueBind(readyQueue, readyRoutingKey, ordersExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", readyQueue, err)
	}
	return nil
}

// Channel returns the current channel.
func (c *Connection) Channel() *amqp091.Channel { return c.channel }

// IsClosed reports whether the connection is gone.
func (c *Connection) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect tears down and re-establishes the connection.
func (c *Connection) Reconnect() error {
	_ = c.close()
	return c.connect()
}

// Close closes the channel and connection.
func (c *Connection) Close() error { return c.close() }

func (c *Connection) close() error {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
