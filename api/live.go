package api

import (
	"net/http"

	"github.com/quickbite/dispatch/core/registry"
	"github.com/quickbite/dispatch/infra/logger"
	"github.com/quickbite/dispatch/infra/ws"
)

// LiveHandler serves the customer and restaurant notification sockets.
// Both are push-only: order status updates flow out, nothing flows in.
type LiveHandler struct {
	reg *registry.Registry
	log logger.Logger
}

// NewLiveHandler wires the notification sockets.
func NewLiveHandler(reg *registry.Registry, log logger.Logger) *LiveHandler {
	return &LiveHandler{reg: reg, log: log}
}

// CustomerSocket handles GET /customer/ws/{userID}.
func (h *LiveHandler) CustomerSocket(w http.ResponseWriter, r *http.Request) {
	h.socket(w, r, registry.RoleCustomer, "userID")
}

// RestaurantSocket handles GET /restaurant/ws/{restaurantID}.
func (h *LiveHandler) RestaurantSocket(w http.ResponseWriter, r *http.Request) {
	h.socket(w, r, registry.RoleRestaurant, "restaurantID")
}

func (h *LiveHandler) socket(w http.ResponseWriter, r *http.Request, role registry.Role, param string) {
	id, err := idFromURL(r, param)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	conn, err := ws.Upgrade(w, r)
	if err != nil {
		h.log.Warnf("websocket upgrade for %s %d: %v", role, id, err)
		return
	}
	h.reg.Connect(role, id, conn)
	h.log.Debugf("%s %d connected", role, id)
	conn.ReadLoop(func() {
		h.reg.Disconnect(role, id, conn)
		h.log.Debugf("%s %d disconnected", role, id)
	})
}
