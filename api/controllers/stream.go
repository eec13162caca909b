package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angelmondragon/buildmart-backend/api/responses"
	"github.com/angelmondragon/buildmart-backend/internal/cart"
	"github.com/angelmondragon/buildmart-backend/internal/orders"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

// Streamer upgrades authenticated requests to websockets that push a fresh
// JSON view every time the watched data changes.
type Streamer struct {
	upgrader websocket.Upgrader
	logg     *logger.Logger
}

func NewStreamer(origins []string, logg *logger.Logger) *Streamer {
	allowed := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			wildcard = true
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return &Streamer{
		logg: logg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || wildcard {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

type subscribeFunc[T any] func(ctx context.Context) (<-chan T, func(), error)

// serveStream subscribes before upgrading so subscription errors still get a
// regular JSON error response. The stream ends when the client goes away or
// the subscription channel closes.
func serveStream[T any](s *Streamer, w http.ResponseWriter, r *http.Request, subscribe subscribeFunc[T]) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, stop, err := subscribe(ctx)
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}
	defer stop()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(r.Context(), "stream.upgrade_failed: "+err.Error())
		}
		return
	}
	defer conn.Close()

	go func() {
		defer cancel()
		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteWait))
			return
		case update, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

// CartStream pushes the caller's cart view after every change.
func (s *Streamer) CartStream(svc cart.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), s.logg, w, unavailable("cart service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), s.logg, w, err)
			return
		}
		serveStream(s, w, r, func(ctx context.Context) (<-chan cart.View, func(), error) {
			return svc.Watch(ctx, sc)
		})
	}
}

// VendorBucketStream pushes one of the caller's order buckets.
func (s *Streamer) VendorBucketStream(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), s.logg, w, unavailable("orders service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), s.logg, w, err)
			return
		}
		bucket, err := bucketParam(r)
		if err != nil {
			responses.WriteError(r.Context(), s.logg, w, err)
			return
		}
		serveStream(s, w, r, func(ctx context.Context) (<-chan orders.BucketView, func(), error) {
			return svc.WatchVendorBucket(ctx, sc, orders.BucketQuery{Bucket: bucket})
		})
	}
}

func (s *Streamer) CustomerOrdersStream(svc orders.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), s.logg, w, unavailable("orders service"))
			return
		}
		sc, err := callerSession(r)
		if err != nil {
			responses.WriteError(r.Context(), s.logg, w, err)
			return
		}
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		serveStream(s, w, r, func(ctx context.Context) (<-chan orders.OrdersView, func(), error) {
			return svc.WatchCustomerOrders(ctx, sc, orders.CustomerQuery{Status: status})
		})
	}
}
