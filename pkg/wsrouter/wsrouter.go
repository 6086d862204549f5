package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/watchtogether/server/pkg/wsconn"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, conn *wsconn.Conn, payload json.RawMessage) error

// ErrorHandlerFunc is invoked when a handler returns an error or an
// unknown message type arrives. It must not close the connection.
type ErrorHandlerFunc func(ctx context.Context, conn *wsconn.Conn, err error)

type WSRouter struct {
	routes  map[string]HandlerFunc
	onError ErrorHandlerFunc
}

func New(onError ErrorHandlerFunc) *WSRouter {
	return &WSRouter{
		routes:  make(map[string]HandlerFunc),
		onError: onError,
	}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads messages from the connection until it fails, routing
// each one to the registered handler. Handler errors are reported to the
// error handler and do not terminate the read loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *wsconn.Conn) error {
	defer conn.Close()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			if r.onError != nil {
				r.onError(ctx, conn, fmt.Errorf("unknown message type: %q", msg.Type))
			}
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			if r.onError != nil {
				r.onError(msgCtx, conn, err)
			}
		}
	}
}
