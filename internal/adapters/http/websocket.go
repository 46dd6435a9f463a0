package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/trailmap/internal/adapters/nats"
	"github.com/samirrijal/trailmap/internal/core/domain"
	"github.com/samirrijal/trailmap/internal/pkg/metrics"
)

// wsMessage is sent by the client to narrow the relayed event kinds.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Kind   string `json:"kind"`   // event kind, "" = all
}

// WebSocketHandler relays the map events of one session to the client.
// The session id comes from the ?session= query parameter. By default every
// event kind is relayed; clients may send
// {"action":"subscribe","kind":"open_add_form"} to narrow it down.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sessionID, _ := c.Locals("session").(string)
		log := slog.Default().With("session_id", sessionID, "remote", c.RemoteAddr().String())

		writeErr := func(msg string) {
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+msg+`"}`))
		}
		if deps.NATS == nil {
			writeErr("event stream unavailable")
			return
		}
		if deps.Sessions != nil {
			if _, err := deps.Sessions.Get(sessionID); err != nil {
				writeErr("session not found")
				return
			}
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		log.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}
		subscribe := func(subject string) error {
			s, err := deps.NATS.Subscribe(subject, relay)
			if err != nil {
				return err
			}
			mu.Lock()
			subs[subject] = s
			mu.Unlock()
			return nil
		}

		all := natsadapter.SessionWildcard(sessionID)
		if err := subscribe(all); err != nil {
			log.Error("ws subscribe failed", "error", err)
			return
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject := all
			if m.Kind != "" {
				subject = natsadapter.SessionSubject(sessionID, domain.MapEventKind(m.Kind))
			}

			switch m.Action {
			case "subscribe":
				mu.Lock()
				_, exists := subs[subject]
				mu.Unlock()
				if exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				// Narrowing replaces the catch-all subscription.
				if subject != all {
					mu.Lock()
					if s, ok := subs[all]; ok {
						_ = s.Unsubscribe()
						delete(subs, all)
					}
					mu.Unlock()
				}
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				mu.Lock()
				s, exists := subs[subject]
				if exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
				}
				mu.Unlock()
				if exists {
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		mu.Lock()
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		mu.Unlock()
		log.Info("ws client disconnected")
	}
}
