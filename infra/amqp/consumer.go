package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/infra/logger"
)

// OrderReadyEvent is the message the order service publishes when a
// kitchen marks an order ready for pickup. Customer coordinates are
// optional and come from the checkout flow.
type OrderReadyEvent struct {
	OrderID     int64    `json:"order_id"`
	CustomerLat *float64 `json:"customer_lat,omitempty"`
	CustomerLng *float64 `json:"customer_lng,omitempty"`
}

// Coordinate converts the optional position fields, reporting whether
// they were present.
func (e OrderReadyEvent) Coordinate() (model.Coordinate, bool) {
	if e.CustomerLat == nil || e.CustomerLng == nil {
		return model.Coordinate{}, false
	}
	return model.Coordinate{Lat: *e.CustomerLat, Lon: *e.CustomerLng}, true
}

// Handler processes one decoded order-ready event.
type Handler func(ctx context.Context, ev OrderReadyEvent) error

// Consumer reads order-ready events off the dispatch queue.
type Consumer struct {
	conn        *Connection
	log         logger.Logger
	consumerTag string
	prefetch    int
}

// NewConsumer creates a consumer over an established connection.
func NewConsumer(conn *Connection, log logger.Logger, consumerTag string, prefetch int) *Consumer {
	return &Consumer{conn: conn, log: log, consumerTag: consumerTag, prefetch: prefetch}
}

// Start consumes until the context is canceled. A closed channel
// triggers a reconnect and resumes consuming.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	if c.conn.IsClosed() {
		if err := c.conn.Reconnect(); err != nil {
			return fmt.Errorf("reconnect: %w", err)
		}
	}

	if err := c.conn.Channel().Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := c.conn.Channel().Consume(readyQueue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	c.log.Infof("consuming order events from %s", readyQueue)

	for {
		select {
		case <-ctx.Done():
			c.log.Infof("order event consumer stopped")
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				c.log.Warnf("message channel closed, reconnecting")
				if err := c.conn.Reconnect(); err != nil {
					return fmt.Errorf("reconnect after channel close: %w", err)
				}
				return c.Start(ctx, handler)
			}
			c.process(ctx, d, handler)
		}
	}
}

// process handles one delivery. Decode failures are dropped, handler
// failures requeue the message once the broker redelivers it.
func (c *Consumer) process(ctx context.Context, d amqp091.Delivery, handler Handler) {
	var ev OrderReadyEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.log.Errorf("undecodable order event: %v", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.log.Errorf("nack failed: %v", nackErr)
		}
		return
	}

	hctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := handler(hctx, ev); err != nil {
		c.log.Errorf("order event for order %d failed: %v", ev.OrderID, err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.log.Errorf("nack failed: %v", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.log.Errorf("ack failed: %v", err)
	}
}

// Close cancels the consumer and closes the connection.
func (c *Consumer) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
			c.log.Errorf("cancel consumer: %v", err)
		}
		return c.conn.Close()
	}
	return nil
}
