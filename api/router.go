// Package api exposes the dispatch subsystem over HTTP and websockets.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter constructs the chi router. Websocket routes bypass the
// request timeout middleware because they outlive any sane bound.
func NewRouter(courier *CourierHandler, live *LiveHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Route("/delivery", func(r chi.Router) {
			r.Get("/requests", courier.PendingRequests)
			r.Post("/requests/{id}/respond", courier.Respond)
			r.Post("/deliveries/{id}/pickup", courier.Pickup)
			r.Post("/deliveries/{id}/deliver", courier.Deliver)
			r.Post("/location", courier.Location)
			r.Post("/status", courier.Status)
			r.Get("/history", courier.History)
			r.Post("/dispatch/{orderID}", courier.Dispatch)
		})
	})

	r.Get("/delivery/ws/{userID}", courier.Socket)
	r.Get("/customer/ws/{userID}", live.CustomerSocket)
	r.Get("/restaurant/ws/{restaurantID}", live.RestaurantSocket)

	return r
}
