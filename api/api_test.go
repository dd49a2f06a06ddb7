package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/dispatch/core/dispatch"
	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/registry"
	"github.com/quickbite/dispatch/core/store"
	"github.com/quickbite/dispatch/infra/logger"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	log := logger.NopLogger{}
	reg := registry.New(log)
	mgr, err := dispatch.NewManager(st, reg, dispatch.Config{City: "yangon"}, nil, nil, log)
	require.NoError(t, err)
	resp, err := dispatch.NewResponder(st, mgr, nil, log)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(
		NewCourierHandler(st, reg, mgr, resp, log),
		NewLiveHandler(reg, log),
	))
	t.Cleanup(srv.Close)
	return srv, st
}

func seedOrder(st *store.MemoryStore, id int64) model.Order {
	o := model.Order{
		ID:              id,
		RestaurantID:    500,
		CustomerID:      900,
		RestaurantName:  "Shwe Palin",
		CustomerName:    "Aye Chan",
		Status:          model.OrderReady,
		RestaurantCoord: model.Coordinate{Lat: 16.80, Lon: 96.15},
		CustomerCoord:   model.Coordinate{Lat: 16.90, Lon: 96.25},
		Items:           []model.OrderItem{{Name: "Mohinga", Quantity: 2}},
		DeliveryAddress: "12 Bogyoke Rd",
		TotalCents:      8500,
		PaymentMethod:   model.PaymentMethodCash,
	}
	st.PutOrder(o)
	return o
}

func seedCourier(st *store.MemoryStore, id, userID int64) model.Courier {
	c := model.Courier{
		ID:       id,
		UserID:   userID,
		Name:     "Min Thu",
		Status:   model.CourierAvailable,
		Location: model.Coordinate{Lat: 16.81, Lon: 96.16},
		City:     "yangon",
	}
	st.PutCourier(c)
	return c
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
}

func dispatchOrder(t *testing.T, srv *httptest.Server, orderID int64) {
	t.Helper()
	resp := post(t, fmt.Sprintf("%s/delivery/dispatch/%d", srv.URL, orderID), nil)
	defer closeBody(t, resp)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func pendingOffers(t *testing.T, srv *httptest.Server, courierID int64) []dispatch.OfferPayload {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("%s/delivery/requests?rider_id=%d", srv.URL, courierID))
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var offers []dispatch.OfferPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&offers))
	return offers
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer closeBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDispatchAndPoll(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)

	dispatchOrder(t, srv, 100)

	offers := pendingOffers(t, srv, 1)
	require.Len(t, offers, 1)
	assert.Equal(t, int64(100), offers[0].OrderID)
	assert.Equal(t, "Shwe Palin", offers[0].RestaurantName)

	// Unknown order is a 404, not a silent accept.
	resp := post(t, srv.URL+"/delivery/dispatch/404", nil)
	defer closeBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRespondAcceptFlow(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)
	dispatchOrder(t, srv, 100)
	requestID := pendingOffers(t, srv, 1)[0].RequestID

	resp := post(t, fmt.Sprintf("%s/delivery/requests/%d/respond?action=accept&rider_id=1", srv.URL, requestID), nil)
	defer closeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	order, err := st.Order(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, model.OrderRiderAssigned, order.Status)

	// A second accept conflicts.
	again := post(t, fmt.Sprintf("%s/delivery/requests/%d/respond?action=accept&rider_id=1", srv.URL, requestID), nil)
	defer closeBody(t, again)
	assert.Equal(t, http.StatusConflict, again.StatusCode)
}

func TestRespondValidation(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)
	dispatchOrder(t, srv, 100)
	requestID := pendingOffers(t, srv, 1)[0].RequestID

	bad := post(t, fmt.Sprintf("%s/delivery/requests/%d/respond?action=maybe&rider_id=1", srv.URL, requestID), nil)
	defer closeBody(t, bad)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	wrong := post(t, fmt.Sprintf("%s/delivery/requests/%d/respond?action=accept&rider_id=99", srv.URL, requestID), nil)
	defer closeBody(t, wrong)
	assert.Equal(t, http.StatusConflict, wrong.StatusCode)

	missing := post(t, srv.URL+"/delivery/requests/9999/respond?action=accept&rider_id=1", nil)
	defer closeBody(t, missing)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestPickupAndDeliverFlow(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)
	st.PutPayment(model.Payment{ID: 7, OrderID: 100, Method: model.PaymentMethodCash, Status: model.PaymentPending, AmountCents: 8500})
	dispatchOrder(t, srv, 100)
	requestID := pendingOffers(t, srv, 1)[0].RequestID

	accept := post(t, fmt.Sprintf("%s/delivery/requests/%d/respond?action=accept&rider_id=1", srv.URL, requestID), nil)
	closeBody(t, accept)
	require.Equal(t, http.StatusOK, accept.StatusCode)

	delivery, err := st.DeliveryByOrder(context.Background(), 100)
	require.NoError(t, err)

	// Deliver before pickup conflicts.
	early := post(t, fmt.Sprintf("%s/delivery/deliveries/%d/deliver?rider_id=1", srv.URL, delivery.ID), nil)
	closeBody(t, early)
	assert.Equal(t, http.StatusConflict, early.StatusCode)

	pickup := post(t, fmt.Sprintf("%s/delivery/deliveries/%d/pickup?rider_id=1", srv.URL, delivery.ID), nil)
	closeBody(t, pickup)
	require.Equal(t, http.StatusOK, pickup.StatusCode)

	deliver := post(t, fmt.Sprintf("%s/delivery/deliveries/%d/deliver?rider_id=1", srv.URL, delivery.ID), nil)
	closeBody(t, deliver)
	require.Equal(t, http.StatusOK, deliver.StatusCode)

	courier, err := st.Courier(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.CourierAvailable, courier.Status)
	assert.Equal(t, int64(8500), courier.CashCollectedCents)
}

func TestLocationUpdate(t *testing.T) {
	srv, st := newTestServer(t)
	seedCourier(st, 1, 11)

	ok := post(t, srv.URL+"/delivery/location", locationUpdate{RiderID: 1, Lat: 16.99, Lng: 96.01})
	closeBody(t, ok)
	require.Equal(t, http.StatusOK, ok.StatusCode)

	c, err := st.Courier(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 16.99, c.Location.Lat, 1e-9)

	bad := post(t, srv.URL+"/delivery/location", locationUpdate{RiderID: 1, Lat: 120, Lng: 0})
	closeBody(t, bad)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	missing := post(t, srv.URL+"/delivery/location", locationUpdate{RiderID: 99, Lat: 1, Lng: 1})
	closeBody(t, missing)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestStatusToggle(t *testing.T) {
	srv, st := newTestServer(t)
	seedCourier(st, 1, 11)

	off := post(t, srv.URL+"/delivery/status", statusUpdate{RiderID: 1, Status: "unavailable"})
	closeBody(t, off)
	require.Equal(t, http.StatusOK, off.StatusCode)

	c, err := st.Courier(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.CourierUnavailable, c.Status)

	busyCourier := seedCourier(st, 2, 22)
	busyCourier.Status = model.CourierBusy
	st.PutCourier(busyCourier)
	busy := post(t, srv.URL+"/delivery/status", statusUpdate{RiderID: 2, Status: "available"})
	closeBody(t, busy)
	assert.Equal(t, http.StatusConflict, busy.StatusCode)

	invalid := post(t, srv.URL+"/delivery/status", statusUpdate{RiderID: 1, Status: "busy"})
	closeBody(t, invalid)
	assert.Equal(t, http.StatusBadRequest, invalid.StatusCode)
}

func TestHistory(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)
	dispatchOrder(t, srv, 100)
	requestID := pendingOffers(t, srv, 1)[0].RequestID

	accept := post(t, fmt.Sprintf("%s/delivery/requests/%d/respond?action=accept&rider_id=1", srv.URL, requestID), nil)
	closeBody(t, accept)
	require.Equal(t, http.StatusOK, accept.StatusCode)
	delivery, err := st.DeliveryByOrder(context.Background(), 100)
	require.NoError(t, err)
	for _, step := range []string{"pickup", "deliver"} {
		resp := post(t, fmt.Sprintf("%s/delivery/deliveries/%d/%s?rider_id=1", srv.URL, delivery.ID, step), nil)
		closeBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/delivery/history?rider_id=1")
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []historyItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(100), items[0].OrderID)
	assert.Equal(t, "Shwe Palin", items[0].RestaurantName)
	require.NotNil(t, items[0].DeliveredAt)
}

func wsDial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCourierSocketReceivesOffer(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)

	conn := wsDial(t, srv, "/delivery/ws/11")
	dispatchOrder(t, srv, 100)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var offer dispatch.OfferPayload
	require.NoError(t, json.Unmarshal(raw, &offer))
	assert.Equal(t, int64(100), offer.OrderID)
	assert.NotEmpty(t, offer.MessageID)
}

func TestCourierSocketReplaysOnReconnect(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)

	// Offer created while the courier was offline.
	dispatchOrder(t, srv, 100)

	conn := wsDial(t, srv, "/delivery/ws/11")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var offer dispatch.OfferPayload
	require.NoError(t, json.Unmarshal(raw, &offer))
	assert.Equal(t, int64(100), offer.OrderID)
}

func TestCourierSocketSurvivesReconnect(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)

	first := wsDial(t, srv, "/delivery/ws/11")
	second := wsDial(t, srv, "/delivery/ws/11")

	// The second dial closes the first socket server-side; wait for its
	// teardown so the stale onClose has run before the offer is pushed.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	require.Error(t, err)
	time.Sleep(50 * time.Millisecond)

	dispatchOrder(t, srv, 100)

	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := second.ReadMessage()
	require.NoError(t, err, "reconnected socket must still receive offers")
	var offer dispatch.OfferPayload
	require.NoError(t, json.Unmarshal(raw, &offer))
	assert.Equal(t, int64(100), offer.OrderID)
}

func TestCourierSocketUnknownUser(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/delivery/ws/999"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCustomerSocketReceivesStatusUpdate(t *testing.T) {
	srv, st := newTestServer(t)
	seedOrder(st, 100)
	seedCourier(st, 1, 11)

	custConn := wsDial(t, srv, "/customer/ws/900")
	restConn := wsDial(t, srv, "/restaurant/ws/500")

	dispatchOrder(t, srv, 100)
	requestID := pendingOffers(t, srv, 1)[0].RequestID
	resp := post(t, fmt.Sprintf("%s/delivery/requests/%d/respond?action=accept&rider_id=1", srv.URL, requestID), nil)
	closeBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, conn := range []*websocket.Conn{custConn, restConn} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var update dispatch.StatusPayload
		require.NoError(t, json.Unmarshal(raw, &update))
		assert.Equal(t, string(model.OrderRiderAssigned), update.Status)
		assert.Equal(t, "Min Thu", update.RiderName)
	}
}
