// Package feed serves a read-only websocket stream of a session's state,
// for projector screens and other displays that never send input.
package feed

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/MysteryBlokHed/alheure/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	buffer     = 16
)

type Message struct {
	Type   string        `json:"type"` // "state"
	State  game.Snapshot `json:"state"`
	Events []game.Event  `json:"events,omitempty"`
}

// Sessions looks up a live session by join code.
type Sessions interface {
	Get(code string) (*game.Session, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades /feed/:code requests. The first message is the current
// snapshot; one message follows every applied transition.
func Handler(sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		sess, err := sessions.Get(code)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Str("code", code).Msg("feed upgrade failed")
			return
		}

		updates, cancel := sess.Subscribe(buffer)
		cl := &client{conn: conn, code: code}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(Message{Type: "state", State: sess.Snapshot()}); err != nil {
			cancel()
			_ = conn.Close()
			return
		}
		log.Debug().Str("code", code).Str("remote", c.Request.RemoteAddr).Msg("feed connected")

		go cl.writePump(updates)
		cl.readPump()
		cancel()
	}
}

type client struct {
	conn *websocket.Conn
	code string
}

// readPump only watches for pongs and the close frame; viewers have nothing
// to say.
func (c *client) readPump() {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(updates <-chan game.Notification) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case n, ok := <-updates:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// session ended
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
				return
			}
			if err := c.conn.WriteJSON(Message{Type: "state", State: n.Snapshot, Events: n.Events}); err != nil {
				log.Debug().Err(err).Str("code", c.code).Msg("feed write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
