package pgstore_test

import (
	"context"
	_ "embed"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/store"
	"github.com/quickbite/dispatch/infra/pgstore"
)

//go:embed schema.sql
var schema string

// setup connects to the database named by DISPATCH_TEST_DSN, applies the
// schema and truncates all tables. Tests are skipped when the variable
// is unset.
func setup(t *testing.T) (*pgstore.PGStore, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("DISPATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("DISPATCH_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgstore.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, schema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE dispatch_requests, deliveries, payments, orders, couriers, restaurants, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return pgstore.New(pool), pool
}

func seedOrder(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	ctx := context.Background()
	var userID, restID, orderID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (name) VALUES ('Aye Chan') RETURNING id`).Scan(&userID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO restaurants (name, lat, lng) VALUES ('Shwe Palin', 16.80, 96.15) RETURNING id`).Scan(&restID))
	require.NoError(t, pool.QueryRow(ctx, `
        INSERT INTO orders (restaurant_id, customer_id, status, items, delivery_address, total_cents, payment_method, dropoff_lat, dropoff_lng)
        VALUES ($1, $2, 'ready', '[{"name":"Mohinga","quantity":2}]', '12 Bogyoke Rd', 8500, 'cash', 16.90, 96.25)
        RETURNING id`, restID, userID).Scan(&orderID))
	return orderID
}

func seedCourier(t *testing.T, pool *pgxpool.Pool, name string) int64 {
	t.Helper()
	ctx := context.Background()
	var userID, courierID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (name) VALUES ($1) RETURNING id`, name).Scan(&userID))
	require.NoError(t, pool.QueryRow(ctx, `
        INSERT INTO couriers (user_id, name, status, lat, lng, city)
        VALUES ($1, $2, 'available', 16.81, 96.16, 'yangon')
        RETURNING id`, userID, name).Scan(&courierID))
	return courierID
}

func TestOrderRoundTrip(t *testing.T) {
	st, pool := setup(t)
	orderID := seedOrder(t, pool)
	ctx := context.Background()

	o, err := st.Order(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "Shwe Palin", o.RestaurantName)
	assert.Equal(t, "Aye Chan", o.CustomerName)
	assert.Equal(t, model.OrderReady, o.Status)
	assert.True(t, o.RestaurantCoord.Known())
	assert.True(t, o.CustomerCoord.Known())
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Mohinga", o.Items[0].Name)

	require.NoError(t, st.SetOrderStatus(ctx, orderID, model.OrderRiderAssigned))
	o, err = st.Order(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderRiderAssigned, o.Status)

	_, err = st.Order(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCourierQueries(t *testing.T) {
	st, pool := setup(t)
	courierID := seedCourier(t, pool, "Min Thu")
	ctx := context.Background()

	c, err := st.Courier(ctx, courierID)
	require.NoError(t, err)
	assert.Equal(t, "Min Thu", c.Name)
	assert.True(t, c.Location.Known())

	byUser, err := st.CourierByUser(ctx, c.UserID)
	require.NoError(t, err)
	assert.Equal(t, courierID, byUser.ID)

	avail, err := st.AvailableCouriers(ctx, "yangon")
	require.NoError(t, err)
	require.Len(t, avail, 1)

	avail, err = st.AvailableCouriers(ctx, "mandalay")
	require.NoError(t, err)
	assert.Empty(t, avail)

	require.NoError(t, st.SetCourierStatus(ctx, courierID, model.CourierBusy))
	avail, err = st.AvailableCouriers(ctx, "yangon")
	require.NoError(t, err)
	assert.Empty(t, avail)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, st.SetCourierLocation(ctx, courierID, model.Coordinate{Lat: 16.99, Lon: 96.01}, at))
	require.NoError(t, st.AddCashCollected(ctx, courierID, 8500))
	c, err = st.Courier(ctx, courierID)
	require.NoError(t, err)
	assert.InDelta(t, 16.99, c.Location.Lat, 1e-9)
	assert.Equal(t, int64(8500), c.CashCollectedCents)
}

func TestResolvePendingRace(t *testing.T) {
	st, pool := setup(t)
	orderID := seedOrder(t, pool)
	courierID := seedCourier(t, pool, "Min Thu")
	ctx := context.Background()

	req, err := st.CreateRequest(ctx, orderID, courierID, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.RequestPending, req.Status)

	won, err := st.ResolvePending(ctx, req.ID, model.RequestAccepted)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = st.ResolvePending(ctx, req.ID, model.RequestExpired)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := st.Request(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestAccepted, got.Status)

	_, err = st.ResolvePending(ctx, 9999, model.RequestExpired)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExpireSiblingsAndAttempted(t *testing.T) {
	st, pool := setup(t)
	orderID := seedOrder(t, pool)
	c1 := seedCourier(t, pool, "Min Thu")
	c2 := seedCourier(t, pool, "Kyaw Zin")
	ctx := context.Background()

	r1, err := st.CreateRequest(ctx, orderID, c1, time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = st.CreateRequest(ctx, orderID, c2, time.Now().Add(time.Minute))
	require.NoError(t, err)

	n, err := st.ExpireSiblings(ctx, orderID, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := st.PendingForCourier(ctx, c2)
	require.NoError(t, err)
	assert.Empty(t, pending)

	ids, err := st.AttemptedCourierIDs(ctx, orderID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{c1, c2}, ids)
}

func TestDeliveryLifecycle(t *testing.T) {
	st, pool := setup(t)
	orderID := seedOrder(t, pool)
	courierID := seedCourier(t, pool, "Min Thu")
	ctx := context.Background()

	d, err := st.CreateDelivery(ctx, orderID, courierID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryAssigned, d.Status)

	_, err = st.CreateDelivery(ctx, orderID, courierID)
	assert.ErrorIs(t, err, store.ErrConflict)

	picked := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, st.SetDeliveryStatus(ctx, d.ID, model.DeliveryPickedUp, picked))
	got, err := st.Delivery(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPickedUp, got.Status)
	require.NotNil(t, got.PickedUpAt)

	delivered := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, st.SetDeliveryStatus(ctx, d.ID, model.DeliveryDelivered, delivered))
	byOrder, err := st.DeliveryByOrder(ctx, orderID)
	require.NoError(t, err)
	require.NotNil(t, byOrder.DeliveredAt)

	done, err := st.CompletedForCourier(ctx, courierID)
	require.NoError(t, err)
	require.Len(t, done, 1)
}

func TestPaymentSettlement(t *testing.T) {
	st, pool := setup(t)
	orderID := seedOrder(t, pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
        INSERT INTO payments (order_id, method, status, amount_cents)
        VALUES ($1, 'cash', 'pending', 8500)`, orderID)
	require.NoError(t, err)

	p, err := st.PaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, p.Status)

	require.NoError(t, st.MarkPaid(ctx, p.ID))
	p, err = st.PaymentByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, p.Status)

	_, err = st.PaymentByOrder(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
