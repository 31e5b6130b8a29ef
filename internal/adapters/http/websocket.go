package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/pyrovision/pyrovision/internal/adapters/nats"
	"github.com/pyrovision/pyrovision/internal/pkg/metrics"
)

// wsMessage is sent by clients to change what they receive.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "alerts" | "detections" | "wildfire" (default: alerts)
}

// wsSubjects maps client channel names to event subjects.
var wsSubjects = map[string]string{
	"alerts":     natsadapter.SubjectAlerts,
	"detections": natsadapter.SubjectDetections,
	"wildfire":   natsadapter.SubjectDetectionPrefix + "wildfire",
}

// WebSocketHandler relays detection and alert events to connected clients.
// New clients receive dispatch reports; they send
// {"action":"subscribe","channel":"detections"} for more.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remote := c.RemoteAddr().String()
		if nc == nil {
			_ = c.WriteJSON(map[string]string{"error": "event stream not configured"})
			return
		}
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		slog.Info("ws client connected", "remote", remote)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription)

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

		sub, err := nc.Subscribe(natsadapter.SubjectAlerts, relay)
		if err != nil {
			slog.Error("ws default subscribe failed", "error", err)
			return
		}
		subs[natsadapter.SubjectAlerts] = sub

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
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Channel == "" {
				m.Channel = "alerts"
			}
			subject, ok := wsSubjects[m.Channel]
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				s, exists := subs[subject]
				if !exists {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				_ = s.Unsubscribe()
				delete(subs, subject)
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remote)
	}
}
