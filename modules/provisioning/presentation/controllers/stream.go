package controllers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/presentation/mappers"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	frameBuffer    = 64
)

const (
	FrameState        = "state"
	FrameNotification = "notification"
)

// Frame is one message pushed to a session stream.
type Frame struct {
	Type         string               `json:"type"`
	State        *mappers.SessionView `json:"state,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
}

func stateFrame(id uuid.UUID, snap services.Snapshot) Frame {
	view := mappers.SnapshotToView(id, snap)
	return Frame{Type: FrameState, State: &view}
}

func (c *RuleBuilderController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range c.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// Stream pushes a state frame after every change of the session and a
// notification frame for every notification. Slow readers lose frames
// instead of stalling the builder.
func (c *RuleBuilderController) Stream(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	log := composables.UseLogger(r.Context()).WithField("session_id", sess.ID.String())

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     c.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	frames := make(chan Frame, frameBuffer)
	push := func(f Frame) {
		select {
		case frames <- f:
		default:
			log.WithField("type", f.Type).Warn("stream buffer full, dropping frame")
		}
	}
	unsubscribeState := sess.Builder.Subscribe(func(e *services.StateChanged) {
		push(stateFrame(sess.ID, e.Snapshot))
	})
	defer unsubscribeState()
	unsubscribeNotifications := sess.Builder.Subscribe(func(e *notify.Raised) {
		n := e.Notification
		push(Frame{Type: FrameNotification, Notification: &n})
	})
	defer unsubscribeNotifications()

	push(stateFrame(sess.ID, sess.Builder.Snapshot()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Debug("websocket read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case f := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
