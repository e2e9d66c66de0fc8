package sync

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 60 * time.Second
	pongWait       = 75 * time.Second
	maxMessageSize = 16 * 1024
)

// ServeConn attaches a websocket to the hub and pumps messages until the
// socket or the hub lets go. Blocks until the connection is finished.
func (h *Hub) ServeConn(ws *websocket.Conn) {
	sess := h.Connect()
	go h.writePump(ws, sess)
	h.readPump(ws, sess)
}

// readPump feeds inbound envelopes to the hub. A missed pong trips the
// read deadline and tears the connection down like an unclean close.
func (h *Hub) readPump(ws *websocket.Conn, sess *Session) {
	defer func() {
		h.Disconnect(sess)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := ws.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("connection", sess.id).Msg("unclean websocket close")
			}
			return
		}
		h.Inbound(sess, env)
	}
}

func (h *Hub) writePump(ws *websocket.Conn, sess *Session) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case env := <-sess.send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-sess.done:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
