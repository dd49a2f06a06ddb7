package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/dispatch/core/events"
	"github.com/quickbite/dispatch/core/logger"
	coremetrics "github.com/quickbite/dispatch/core/metrics"
	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/registry"
	"github.com/quickbite/dispatch/core/store"
	"github.com/quickbite/dispatch/internal/eventbus"
)

// Manager coordinates order and delivery state: it ranks candidate
// couriers, creates offers, pushes notifications, monitors timeouts and
// triggers re-dispatch.
type Manager struct {
	store    store.Store
	registry *registry.Registry
	matcher  Matcher
	cfg      Config
	log      logger.Logger
	sink     coremetrics.MetricsSink
	bus      *eventbus.Bus[events.Event]

	now      func() time.Time
	schedule func(d time.Duration, fn func())

	mu      sync.Mutex
	coords  map[int64]model.Coordinate // customer drop-off per order, process-local
	inCycle map[int64]bool
}

// NewManager creates a new Manager. The bus may be nil when no observer
// is interested in lifecycle events.
func NewManager(st store.Store, reg *registry.Registry, cfg Config, sink coremetrics.MetricsSink, bus *eventbus.Bus[events.Event], log logger.Logger) (*Manager, error) {
	if st == nil || reg == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Manager{
		store:    st,
		registry: reg,
		matcher:  NewMatcher(cfg),
		cfg:      cfg,
		log:      log,
		sink:     sink,
		bus:      bus,
		now:      time.Now,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		coords:   make(map[int64]model.Coordinate),
		inCycle:  make(map[int64]bool),
	}, nil
}

// DispatchOrder runs one matching cycle for a ready order. An optional
// customer coordinate from the order-ready event is remembered for the
// order's later rounds. Exhausting all candidates is a reportable
// condition, not an error; an error is returned only when a store
// failure blocks all progress.
func (m *Manager) DispatchOrder(ctx context.Context, orderID int64, customerCoord *model.Coordinate) error {
	if customerCoord != nil && customerCoord.Known() {
		m.mu.Lock()
		m.coords[orderID] = *customerCoord
		m.mu.Unlock()
	}
	if !m.beginCycle(orderID) {
		m.log.Debugf("dispatch cycle for order %d already running", orderID)
		return nil
	}
	defer m.endCycle(orderID)
	dispatchCycles.Inc()

	order, err := m.store.Order(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order.Status != model.OrderReady {
		m.log.Infof("order %d is %s, not dispatching", orderID, order.Status)
		return nil
	}

	pickup, dropoff, hasDropoff := m.geometry(order)

	couriers, err := m.store.AvailableCouriers(ctx, m.cfg.City)
	if err != nil {
		return fmt.Errorf("list available couriers: %w", err)
	}
	attempted, err := m.store.AttemptedCourierIDs(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list attempted couriers for order %d: %w", orderID, err)
	}
	couriers = excludeAttempted(couriers, attempted)

	cands := m.matcher.Rank(couriers, pickup, dropoff, hasDropoff)
	if len(cands) == 0 {
		m.log.Warnf("no eligible couriers left for order %d", orderID)
		m.halt(orderID)
		return nil
	}

	for _, cand := range cands {
		req, err := m.store.CreateRequest(ctx, orderID, cand.Courier.ID, m.now().Add(m.cfg.OfferTTL()))
		if err != nil {
			// Treated as no candidate this step.
			m.log.Errorf("create request for order %d courier %d: %v", orderID, cand.Courier.ID, err)
			continue
		}
		offer := m.buildOffer(order, cand, req)
		delivered := m.registry.Send(registry.RoleCourier, cand.Courier.UserID, offer)
		m.recordOffer(req, cand, delivered)
		// The watcher runs even for undelivered offers: the request is
		// left pending for catch-up, so it must still expire.
		m.watch(req.ID, req.ExpiresAt)
		if delivered {
			m.log.Infof("offer %d for order %d pushed to courier %d (score %.2f)",
				req.ID, orderID, cand.Courier.ID, cand.Score)
			return nil
		}
		m.log.Warnf("courier %d unreachable for order %d, trying next candidate", cand.Courier.ID, orderID)
	}

	m.log.Warnf("unable to notify any available courier for order %d", orderID)
	m.halt(orderID)
	return nil
}

// PendingOffers returns the courier's currently pending offers in the
// same shape as the push payload, for poll-based clients.
func (m *Manager) PendingOffers(ctx context.Context, courierID int64) ([]OfferPayload, error) {
	reqs, err := m.store.PendingForCourier(ctx, courierID)
	if err != nil {
		return nil, fmt.Errorf("pending requests for courier %d: %w", courierID, err)
	}
	offers := make([]OfferPayload, 0, len(reqs))
	for _, req := range reqs {
		offer, err := m.offerForRequest(ctx, req)
		if err != nil {
			m.log.Errorf("rebuild offer %d: %v", req.ID, err)
			continue
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

// Replay pushes every still-pending offer for the courier over its
// (re)established channel and returns how many were sent. The registry
// keeps no history, so this is the recovery path for missed pushes.
func (m *Manager) Replay(ctx context.Context, courierID int64) (int, error) {
	courier, err := m.store.Courier(ctx, courierID)
	if err != nil {
		return 0, fmt.Errorf("load courier %d: %w", courierID, err)
	}
	offers, err := m.PendingOffers(ctx, courierID)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, offer := range offers {
		if m.registry.Send(registry.RoleCourier, courier.UserID, offer) {
			sent++
		}
	}
	if sent > 0 {
		m.log.Infof("replayed %d pending offers to courier %d", sent, courierID)
	}
	return sent, nil
}

// CheckExpiry re-checks a request after its timeout. A request still
// pending flips to expired and a new matching round starts; anything
// already resolved makes this a no-op.
func (m *Manager) CheckExpiry(ctx context.Context, requestID int64) {
	req, err := m.store.Request(ctx, requestID)
	if err != nil {
		m.log.Errorf("expiry check for request %d: %v", requestID, err)
		return
	}
	if req.Status.Terminal() {
		return
	}
	ok, err := m.store.ResolvePending(ctx, requestID, model.RequestExpired)
	if err != nil {
		m.log.Errorf("expire request %d: %v", requestID, err)
		return
	}
	if !ok {
		return // resolved between read and write
	}
	offerTimeouts.Inc()
	m.resolved(req, model.RequestExpired)
	m.log.Infof("request %d expired, re-dispatching order %d", requestID, req.OrderID)
	if err := m.DispatchOrder(ctx, req.OrderID, nil); err != nil {
		m.log.Errorf("re-dispatch order %d: %v", req.OrderID, err)
	}
}

// NotifyOrderStatus pushes an order status update to the customer and
// the restaurant. Pushes happen only after the store state changed.
func (m *Manager) NotifyOrderStatus(order model.Order, status model.OrderStatus, riderName string) {
	p := StatusPayload{
		Type:      TypeOrderStatusUpdate,
		OrderID:   order.ID,
		Status:    string(status),
		RiderName: riderName,
		Timestamp: m.now().UTC(),
	}
	m.registry.Send(registry.RoleCustomer, order.CustomerID, p)
	m.registry.Send(registry.RoleRestaurant, order.RestaurantID, p)
	m.publish(events.OrderStatusEvent{OrderID: order.ID, Status: status, Time: m.now()})
}

// ForgetOrder drops the process-local customer coordinate for the order,
// once dispatch for it has concluded.
func (m *Manager) ForgetOrder(orderID int64) {
	m.mu.Lock()
	delete(m.coords, orderID)
	m.mu.Unlock()
}

// geometry resolves the pickup and drop-off points for an order. A
// missing restaurant position falls back to the customer position when
// known, else to the configured default; dispatch never hard-stops on
// missing geo data.
func (m *Manager) geometry(order model.Order) (pickup, dropoff model.Coordinate, hasDropoff bool) {
	m.mu.Lock()
	saved, ok := m.coords[order.ID]
	m.mu.Unlock()
	switch {
	case ok:
		dropoff, hasDropoff = saved, true
	case order.CustomerCoord.Known():
		dropoff, hasDropoff = order.CustomerCoord, true
	}

	pickup = order.RestaurantCoord
	if !pickup.Known() {
		if hasDropoff {
			m.log.Warnf("order %d: restaurant position missing, using customer position", order.ID)
			pickup = dropoff
		} else {
			m.log.Warnf("order %d: restaurant position missing, using system fallback", order.ID)
			pickup = m.cfg.Fallback()
		}
	}
	return pickup, dropoff, hasDropoff
}

func (m *Manager) buildOffer(order model.Order, cand Candidate, req model.DispatchRequest) OfferPayload {
	p := OfferPayload{
		Type:            TypeNewOrderRequest,
		MessageID:       uuid.NewString(),
		RequestID:       req.ID,
		OrderID:         order.ID,
		RestaurantName:  order.RestaurantName,
		Items:           order.Items,
		CustomerName:    order.CustomerName,
		DeliveryAddress: order.DeliveryAddress,
		DistanceKM:      round2(cand.DistanceToRestaurant),
		MatchScore:      round2(cand.Score),
		ExpiresAt:       req.ExpiresAt,
	}
	if cand.HasCustomerLeg {
		d := round2(cand.DistanceToCustomer)
		p.DistanceToCustomerKM = &d
	}
	return p
}

// offerForRequest rebuilds the offer payload for an existing pending
// request, recomputing distances from the courier's current position.
func (m *Manager) offerForRequest(ctx context.Context, req model.DispatchRequest) (OfferPayload, error) {
	order, err := m.store.Order(ctx, req.OrderID)
	if err != nil {
		return OfferPayload{}, err
	}
	courier, err := m.store.Courier(ctx, req.CourierID)
	if err != nil {
		return OfferPayload{}, err
	}
	pickup, dropoff, hasDropoff := m.geometry(order)
	cand := m.matcher.Rank([]model.Courier{courier}, pickup, dropoff, hasDropoff)[0]
	return m.buildOffer(order, cand, req), nil
}

func (m *Manager) watch(requestID int64, expiresAt time.Time) {
	wait := expiresAt.Sub(m.now()) + m.cfg.Grace()
	if wait < 0 {
		wait = 0
	}
	m.schedule(wait, func() {
		m.CheckExpiry(context.Background(), requestID)
	})
}

// halt records that dispatch stopped without an assignment.
func (m *Manager) halt(orderID int64) {
	cyclesExhausted.Inc()
	m.publish(events.ExhaustedEvent{OrderID: orderID, Time: m.now()})
}

func (m *Manager) recordOffer(req model.DispatchRequest, cand Candidate, delivered bool) {
	offersPushed.WithLabelValues(strconv.FormatBool(delivered)).Inc()
	m.publish(events.OfferEvent{
		RequestID: req.ID,
		OrderID:   req.OrderID,
		CourierID: req.CourierID,
		Score:     cand.Score,
		Delivered: delivered,
		Time:      m.now(),
	})
	rec := coremetrics.OfferRecord{
		RequestID:  req.ID,
		OrderID:    req.OrderID,
		CourierID:  req.CourierID,
		DistanceKM: cand.DistanceToRestaurant,
		Score:      cand.Score,
		Delivered:  delivered,
		Time:       m.now(),
	}
	if err := m.sink.RecordOffers([]coremetrics.OfferRecord{rec}); err != nil {
		m.log.Errorf("metrics error: %v", err)
	}
}

// resolved publishes resolution bookkeeping shared by the watcher and
// the responder.
func (m *Manager) resolved(req model.DispatchRequest, status model.RequestStatus) {
	requestsResolved.WithLabelValues(string(status)).Inc()
	m.publish(events.RequestResolvedEvent{
		RequestID: req.ID,
		OrderID:   req.OrderID,
		CourierID: req.CourierID,
		Status:    status,
		Time:      m.now(),
	})
	if rr, ok := m.sink.(coremetrics.ResolutionRecorder); ok {
		rec := coremetrics.ResolutionRecord{
			RequestID: req.ID,
			OrderID:   req.OrderID,
			CourierID: req.CourierID,
			Status:    status,
			Time:      m.now(),
		}
		if err := rr.RecordResolution(rec); err != nil {
			m.log.Errorf("metrics error: %v", err)
		}
	}
}

func (m *Manager) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

func (m *Manager) beginCycle(orderID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inCycle[orderID] {
		return false
	}
	m.inCycle[orderID] = true
	return true
}

func (m *Manager) endCycle(orderID int64) {
	m.mu.Lock()
	delete(m.inCycle, orderID)
	m.mu.Unlock()
}

func excludeAttempted(couriers []model.Courier, attempted []int64) []model.Courier {
	if len(attempted) == 0 {
		return couriers
	}
	seen := make(map[int64]bool, len(attempted))
	for _, id := range attempted {
		seen[id] = true
	}
	out := couriers[:0]
	for _, c := range couriers {
		if !seen[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
