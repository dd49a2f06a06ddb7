package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quickbite/dispatch/core/model"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs tests and
// local development when no database is configured. Conditional updates
// hold the lock across check and write, giving the same atomicity as a
// per-row conditional UPDATE.
type MemoryStore struct {
	mu         sync.Mutex
	orders     map[int64]model.Order
	couriers   map[int64]model.Courier
	requests   map[int64]model.DispatchRequest
	deliveries map[int64]model.Delivery
	payments   map[int64]model.Payment
	nextReq    int64
	nextDel    int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:     map[int64]model.Order{},
		couriers:   map[int64]model.Courier{},
		requests:   map[int64]model.DispatchRequest{},
		deliveries: map[int64]model.Delivery{},
		payments:   map[int64]model.Payment{},
	}
}

// PutOrder seeds or replaces an order record.
func (s *MemoryStore) PutOrder(o model.Order) {
	s.mu.Lock()
	s.orders[o.ID] = o
	s.mu.Unlock()
}

// PutCourier seeds or replaces a courier record.
func (s *MemoryStore) PutCourier(c model.Courier) {
	s.mu.Lock()
	s.couriers[c.ID] = c
	s.mu.Unlock()
}

// PutPayment seeds or replaces a payment record.
func (s *MemoryStore) PutPayment(p model.Payment) {
	s.mu.Lock()
	s.payments[p.ID] = p
	s.mu.Unlock()
}

func (s *MemoryStore) Order(_ context.Context, id int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return o, nil
}

func (s *MemoryStore) SetOrderStatus(_ context.Context, id int64, status model.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	s.orders[id] = o
	return nil
}

func (s *MemoryStore) Courier(_ context.Context, id int64) (model.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	if !ok {
		return model.Courier{}, fmt.Errorf("courier %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *MemoryStore) CourierByUser(_ context.Context, userID int64) (model.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.couriers {
		if c.UserID == userID {
			return c, nil
		}
	}
	return model.Courier{}, fmt.Errorf("courier for user %d: %w", userID, ErrNotFound)
}

func (s *MemoryStore) AvailableCouriers(_ context.Context, city string) ([]model.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Courier
	for _, c := range s.couriers {
		if c.Status != model.CourierAvailable {
			continue
		}
		if city != "" && c.City != city {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) SetCourierStatus(_ context.Context, id int64, status model.CourierStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	if !ok {
		return fmt.Errorf("courier %d: %w", id, ErrNotFound)
	}
	c.Status = status
	s.couriers[id] = c
	return nil
}

func (s *MemoryStore) SetCourierLocation(_ context.Context, id int64, loc model.Coordinate, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	if !ok {
		return fmt.Errorf("courier %d: %w", id, ErrNotFound)
	}
	c.Location = loc
	c.LastLocationUpdate = at
	s.couriers[id] = c
	return nil
}

func (s *MemoryStore) AddCashCollected(_ context.Context, id int64, cents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	if !ok {
		return fmt.Errorf("courier %d: %w", id, ErrNotFound)
	}
	c.CashCollectedCents += cents
	s.couriers[id] = c
	return nil
}

func (s *MemoryStore) CreateRequest(_ context.Context, orderID, courierID int64, expiresAt time.Time) (model.DispatchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextReq++
	req := model.DispatchRequest{
		ID:        s.nextReq,
		OrderID:   orderID,
		CourierID: courierID,
		Status:    model.RequestPending,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *MemoryStore) Request(_ context.Context, id int64) (model.DispatchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return model.DispatchRequest{}, fmt.Errorf("dispatch request %d: %w", id, ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) ResolvePending(_ context.Context, id int64, status model.RequestStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, fmt.Errorf("dispatch request %d: %w", id, ErrNotFound)
	}
	if r.Status != model.RequestPending {
		return false, nil
	}
	r.Status = status
	s.requests[id] = r
	return true, nil
}

func (s *MemoryStore) ExpireSiblings(_ context.Context, orderID, exceptID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.requests {
		if r.OrderID != orderID || id == exceptID || r.Status != model.RequestPending {
			continue
		}
		r.Status = model.RequestExpired
		s.requests[id] = r
		n++
	}
	return n, nil
}

func (s *MemoryStore) AttemptedCourierIDs(_ context.Context, orderID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, r := range s.requests {
		if r.OrderID == orderID {
			ids = append(ids, r.CourierID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) PendingForCourier(_ context.Context, courierID int64) ([]model.DispatchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.DispatchRequest
	for _, r := range s.requests {
		if r.CourierID == courierID && r.Status == model.RequestPending {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) CreateDelivery(_ context.Context, orderID, courierID int64) (model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deliveries {
		if d.OrderID == orderID {
			return model.Delivery{}, fmt.Errorf("delivery for order %d exists: %w", orderID, ErrConflict)
		}
	}
	s.nextDel++
	d := model.Delivery{
		ID:        s.nextDel,
		OrderID:   orderID,
		CourierID: courierID,
		Status:    model.DeliveryAssigned,
		CreatedAt: time.Now(),
	}
	s.deliveries[d.ID] = d
	return d, nil
}

func (s *MemoryStore) Delivery(_ context.Context, id int64) (model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return model.Delivery{}, fmt.Errorf("delivery %d: %w", id, ErrNotFound)
	}
	return d, nil
}

func (s *MemoryStore) DeliveryByOrder(_ context.Context, orderID int64) (model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deliveries {
		if d.OrderID == orderID {
			return d, nil
		}
	}
	return model.Delivery{}, fmt.Errorf("delivery for order %d: %w", orderID, ErrNotFound)
}

func (s *MemoryStore) SetDeliveryStatus(_ context.Context, id int64, status model.DeliveryStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return fmt.Errorf("delivery %d: %w", id, ErrNotFound)
	}
	d.Status = status
	switch status {
	case model.DeliveryPickedUp:
		d.PickedUpAt = &at
	case model.DeliveryDelivered:
		d.DeliveredAt = &at
	}
	s.deliveries[id] = d
	return nil
}

func (s *MemoryStore) CompletedForCourier(_ context.Context, courierID int64) ([]model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Delivery
	for _, d := range s.deliveries {
		if d.CourierID == courierID && d.Status == model.DeliveryDelivered {
			res = append(res, d)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID > res[j].ID })
	return res, nil
}

func (s *MemoryStore) PaymentByOrder(_ context.Context, orderID int64) (model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return model.Payment{}, fmt.Errorf("payment for order %d: %w", orderID, ErrNotFound)
}

func (s *MemoryStore) MarkPaid(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return fmt.Errorf("payment %d: %w", id, ErrNotFound)
	}
	p.Status = model.PaymentPaid
	s.payments[id] = p
	return nil
}

var _ Store = (*MemoryStore)(nil)
