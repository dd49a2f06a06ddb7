package api

import (
	"context"
	"net/http"
	"time"

	"github.com/quickbite/dispatch/core/dispatch"
	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/registry"
	"github.com/quickbite/dispatch/core/store"
	"github.com/quickbite/dispatch/infra/logger"
	"github.com/quickbite/dispatch/infra/ws"
)

// CourierHandler serves the courier-facing endpoints. REST endpoints
// identify the courier by rider_id (the courier record ID); the
// websocket path uses the platform user ID, matching how clients
// authenticate.
type CourierHandler struct {
	store store.Store
	reg   *registry.Registry
	mgr   *dispatch.Manager
	resp  *dispatch.Responder
	log   logger.Logger
}

// NewCourierHandler wires the courier endpoints.
func NewCourierHandler(st store.Store, reg *registry.Registry, mgr *dispatch.Manager, resp *dispatch.Responder, log logger.Logger) *CourierHandler {
	return &CourierHandler{store: st, reg: reg, mgr: mgr, resp: resp, log: log}
}

// Socket handles GET /delivery/ws/{userID}. On connect, pending offers
// are replayed so a reconnecting courier misses nothing.
func (h *CourierHandler) Socket(w http.ResponseWriter, r *http.Request) {
	userID, err := idFromURL(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	courier, err := h.store.CourierByUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	conn, err := ws.Upgrade(w, r)
	if err != nil {
		// Upgrade already wrote the handshake error.
		h.log.Warnf("websocket upgrade for user %d: %v", userID, err)
		return
	}
	h.reg.Connect(registry.RoleCourier, userID, conn)
	h.log.Infof("courier %d connected", courier.ID)

	if _, err := h.mgr.Replay(r.Context(), courier.ID); err != nil {
		h.log.Errorf("replay for courier %d: %v", courier.ID, err)
	}

	conn.ReadLoop(func() {
		h.reg.Disconnect(registry.RoleCourier, userID, conn)
		h.log.Infof("courier %d disconnected", courier.ID)
	})
}

// PendingRequests handles GET /delivery/requests?rider_id=. It returns
// the courier's open offers in the push payload shape, for poll-based
// clients.
func (h *CourierHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	courierID, err := idFromQuery(r, "rider_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rider_id")
		return
	}
	offers, err := h.mgr.PendingOffers(r.Context(), courierID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if offers == nil {
		offers = []dispatch.OfferPayload{}
	}
	writeJSON(w, http.StatusOK, offers)
}

// Respond handles POST /delivery/requests/{id}/respond?action=&rider_id=.
func (h *CourierHandler) Respond(w http.ResponseWriter, r *http.Request) {
	requestID, err := idFromURL(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request id")
		return
	}
	courierID, err := idFromQuery(r, "rider_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rider_id")
		return
	}
	action := dispatch.Action(r.URL.Query().Get("action"))
	if !action.Valid() {
		writeError(w, http.StatusBadRequest, "action must be accept or reject")
		return
	}
	if err := h.resp.Respond(r.Context(), requestID, courierID, action); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(action) + "ed"})
}

// Pickup handles POST /delivery/deliveries/{id}/pickup?rider_id=.
func (h *CourierHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.resp.Pickup)
}

// Deliver handles POST /delivery/deliveries/{id}/deliver?rider_id=.
func (h *CourierHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.resp.Deliver)
}

func (h *CourierHandler) advance(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, deliveryID, courierID int64) error) {
	deliveryID, err := idFromURL(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}
	courierID, err := idFromQuery(r, "rider_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rider_id")
		return
	}
	if err := fn(r.Context(), deliveryID, courierID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type locationUpdate struct {
	RiderID int64   `json:"rider_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Location handles POST /delivery/location with the courier's live
// position.
func (h *CourierHandler) Location(w http.ResponseWriter, r *http.Request) {
	var req locationUpdate
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if req.RiderID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid rider_id")
		return
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}
	loc := model.Coordinate{Lat: req.Lat, Lon: req.Lng}
	if err := h.store.SetCourierLocation(r.Context(), req.RiderID, loc, time.Now().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusUpdate struct {
	RiderID int64  `json:"rider_id"`
	Status  string `json:"status"`
}

// Status handles POST /delivery/status. Couriers may only toggle
// between available and unavailable; busy is owned by the dispatcher.
func (h *CourierHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req statusUpdate
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}
	if req.RiderID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid rider_id")
		return
	}
	status := model.CourierStatus(req.Status)
	if status != model.CourierAvailable && status != model.CourierUnavailable {
		writeError(w, http.StatusBadRequest, "status must be available or unavailable")
		return
	}
	courier, err := h.store.Courier(r.Context(), req.RiderID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if courier.Status == model.CourierBusy {
		writeError(w, http.StatusConflict, "courier has an active delivery")
		return
	}
	if err := h.store.SetCourierStatus(r.Context(), req.RiderID, status); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type historyItem struct {
	DeliveryID     int64      `json:"delivery_id"`
	OrderID        int64      `json:"order_id"`
	RestaurantName string     `json:"restaurant_name"`
	TotalCents     int64      `json:"total_cents"`
	PickedUpAt     *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// History handles GET /delivery/history?rider_id= with the courier's
// completed deliveries, most recent first.
func (h *CourierHandler) History(w http.ResponseWriter, r *http.Request) {
	courierID, err := idFromQuery(r, "rider_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid rider_id")
		return
	}
	deliveries, err := h.store.CompletedForCourier(r.Context(), courierID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	items := make([]historyItem, 0, len(deliveries))
	for _, d := range deliveries {
		item := historyItem{
			DeliveryID:  d.ID,
			OrderID:     d.OrderID,
			PickedUpAt:  d.PickedUpAt,
			DeliveredAt: d.DeliveredAt,
		}
		if order, err := h.store.Order(r.Context(), d.OrderID); err == nil {
			item.RestaurantName = order.RestaurantName
			item.TotalCents = order.TotalCents
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

// Dispatch handles POST /delivery/dispatch/{orderID}, the internal
// trigger used when no message broker carries the order-ready event.
func (h *CourierHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	orderID, err := idFromURL(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	if err := h.mgr.DispatchOrder(r.Context(), orderID, nil); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatching"})
}
