// Package dispatch implements the core logic for matching ready orders
// to available couriers in a delivery marketplace.
//
// When an order becomes ready the Manager ranks available couriers by a
// weighted great-circle distance (pickup leg weighted higher than the
// drop-off leg), creates a time-bounded dispatch request for the best
// candidate and pushes the offer over the connection registry. If the
// courier is unreachable the next candidate is tried immediately; the
// created request is left pending so a later reconnect or poll can still
// surface it. A one-shot timeout watcher per request expires unresolved
// offers and restarts matching, excluding couriers already attempted.
//
// Key components:
//   - Matcher: scores and orders courier candidates.
//   - Manager: runs the dispatch cycle, timeout watchers and the
//     reconnect/poll catch-up path.
//   - Responder: applies courier accept/reject/pickup/deliver actions
//     with exactly-one-winner enforcement on the store.
//
// Correctness rests on the store's conditional status updates: an accept
// succeeds only if the request was still pending at write time, and
// accepting one request atomically expires all sibling offers for the
// order. The registry is presence only; nothing is queued or retried
// there.
package dispatch
