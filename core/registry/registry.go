// Package registry tracks live notification channels per actor. It is an
// in-memory presence directory: one channel per actor id and role, no
// queueing or replay. Recovery for a reconnecting courier lives in the
// dispatch layer.
package registry

import (
	"encoding/json"
	"sync"

	"github.com/quickbite/dispatch/core/logger"
)

// Role separates the three independent id-spaces.
type Role string

const (
	RoleCourier    Role = "courier"
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
)

// Conn is a live channel to one actor. Send must fail fast; it is never
// retried by the registry.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Registry maps actor ids to live channels. A new connect for an id
// replaces the prior channel; a failed send deregisters the id.
type Registry struct {
	mu    sync.Mutex
	conns map[Role]map[int64]Conn
	log   logger.Logger
}

// New creates an empty Registry.
func New(log logger.Logger) *Registry {
	return &Registry{
		conns: map[Role]map[int64]Conn{
			RoleCourier:    {},
			RoleCustomer:   {},
			RoleRestaurant: {},
		},
		log: log,
	}
}

// Connect registers the channel for the actor, replacing and closing any
// existing one.
func (r *Registry) Connect(role Role, id int64, conn Conn) {
	r.mu.Lock()
	prev := r.conns[role][id]
	r.conns[role][id] = conn
	size := len(r.conns[role])
	r.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	liveConnections.WithLabelValues(string(role)).Set(float64(size))
	r.log.Infof("%s %d connected", role, id)
}

// Disconnect removes the actor's channel, but only when conn is the
// channel currently registered. A stale socket tearing down after its
// replacement must not evict the live one. Disconnect is idempotent and
// does not close the channel; transports close their own sockets.
func (r *Registry) Disconnect(role Role, id int64, conn Conn) {
	r.mu.Lock()
	cur, ok := r.conns[role][id]
	if ok && cur == conn {
		delete(r.conns[role], id)
	} else {
		ok = false
	}
	size := len(r.conns[role])
	r.mu.Unlock()

	if ok {
		liveConnections.WithLabelValues(string(role)).Set(float64(size))
		r.log.Infof("%s %d disconnected", role, id)
	}
}

// Connected reports whether the actor currently has a channel.
func (r *Registry) Connected(role Role, id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[role][id]
	return ok
}

// Send serializes the message and transmits it to the actor. It returns
// false when the actor is unregistered or the transmit fails; a failed
// transmit deregisters the actor. Send never returns an error to the
// caller.
func (r *Registry) Send(role Role, id int64, msg any) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.log.Errorf("marshal message for %s %d: %v", role, id, err)
		return false
	}

	r.mu.Lock()
	conn, ok := r.conns[role][id]
	r.mu.Unlock()
	if !ok {
		return false
	}

	if err := conn.Send(payload); err != nil {
		r.log.Warnf("send to %s %d failed, dropping channel: %v", role, id, err)
		sendFailures.WithLabelValues(string(role)).Inc()
		r.Disconnect(role, id, conn)
		return false
	}
	messagesSent.WithLabelValues(string(role)).Inc()
	return true
}

// Broadcast sends the message to every registered actor of the role,
// best effort, and returns the number of successful deliveries.
func (r *Registry) Broadcast(role Role, msg any) int {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.conns[role]))
	for id := range r.conns[role] {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	delivered := 0
	for _, id := range ids {
		if r.Send(role, id, msg) {
			delivered++
		}
	}
	return delivered
}
