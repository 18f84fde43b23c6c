package public

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minichain/minichain/foundation/web"
)

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return err
	}

	// Need this to handle CORS on the websocket.
	var upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	// This upgrades the HTTP connection to a websocket connection.
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	h.Log.Infow("websocket open", "path", "/v1/events", "traceid", v.TraceID)
	defer h.Log.Infow("websocket closed", "path", "/v1/events", "traceid", v.TraceID)

	// Set the pong handler to receive the pong message.
	c.SetPongHandler(func(appData string) error {
		h.Log.Infow("pong received", "path", "/v1/events", "traceid", v.TraceID)
		return nil
	})

	// This provides a channel for receiving events from the node.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
