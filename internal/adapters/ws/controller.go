package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mkurev/avagate/internal/app"
	"github.com/mkurev/avagate/internal/core"
)

const (
	defaultQueueSize  = 32
	defaultReadLimit  = 32768
	defaultPingPeriod = 54 * time.Second
	writeWait         = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	Manager    *app.Manager
	Router     *app.Router
	ReadLimit  int64
	PingPeriod time.Duration
}

// Handle upgrades the request and registers the session. One goroutine
// reads, one writes; the write side drains the conn's send queue.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.Param("session_id"))
	if sid == "" {
		sid = core.SessionID(c.GetString("client_token"))
	}
	log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("new WS connection")

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		socket.SetReadLimit(ctl.ReadLimit)
	} else {
		socket.SetReadLimit(defaultReadLimit)
	}

	conn := newConn(socket, defaultQueueSize)
	metadata := map[string]string{
		"user_agent": c.Request.UserAgent(),
		"client_ip":  c.ClientIP(),
	}
	ctl.Manager.Connect(ctx, sid, conn, metadata)
	ctl.Router.Welcome(ctx, sid)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	pingPeriod := ctl.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "adapters.ws").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		// Skip the teardown when a newer connection already replaced
		// this one.
		ctl.Manager.DisconnectConn(context.WithoutCancel(ctx), sid, c)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "adapters.ws").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.Router.Route(ctx, sid, core.Frame(data))
		}
	}
}
