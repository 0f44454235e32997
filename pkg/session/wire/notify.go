package wire

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nexusdb/nexus/internal/xlog"
	"github.com/nexusdb/nexus/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin policy belongs to the server shell wrapping this module,
	// not the core (spec §1's wire-authentication Non-goal) — accept
	// every upgrade here and let the caller front this with its own
	// check if it needs one.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// notificationFrame is the JSON frame written for each live.Notification.
type notificationFrame struct {
	LiveID string `json:"lqid"`
	Action string `json:"action"`
	Result string `json:"result,omitempty"`
}

var actionNames = [...]string{"CREATE", "UPDATE", "DELETE", "KILLED"}

func encodeNotification(n session.Notification) notificationFrame {
	f := notificationFrame{LiveID: n.LiveID}
	if int(n.Action) < len(actionNames) {
		f.Action = actionNames[n.Action]
	}
	if n.Result != nil {
		f.Result = n.Result.String()
	}
	return f
}

// ServeNotifications upgrades r to a websocket and streams sess's
// live-query notifications onto it until ctx is cancelled, the
// connection breaks, or sess's channel closes (Session.Close) — the
// transport half of spec §6.4's
// `live(query, params) -> (lqid, Stream<Notification>)` contract.
func ServeNotifications(ctx context.Context, log *xlog.Logger, w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := sess.Notifications()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(encodeNotification(n)); err != nil {
				log.Warn("wire: notification write failed", "err", err)
				return err
			}
		}
	}
}
