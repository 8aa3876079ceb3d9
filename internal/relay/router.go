package relay

import (
	"log/slog"

	"github.com/Ruz-on-git/FiguraJustCommunicateServer/internal/protocol"
)

// routeMessage relays a validated direct message. The recipient lookup, the
// room check, and the whitelist check happen atomically in the registry; a
// deliverable message is forwarded verbatim, and every other outcome sends
// the sender one byte-identical failure response so presence cannot be
// inferred.
func (s *Server) routeMessage(c *client, msg map[string]any) {
	sess, ok := s.reg.Lookup(c)
	if !ok {
		return
	}
	recipientID := protocol.String(msg, "recipient_id")

	recipient, ok := s.reg.Resolve(c, recipientID)
	if !ok {
		s.metrics.MessagesRefused.Add(1)
		if err := c.Send(protocol.NewDeliveryFailure(recipientID)); err != nil {
			slog.Debug("failure response dropped", "conn_id", c.ID(), "error", err)
		}
		return
	}

	s.metrics.MessagesRouted.Add(1)
	if err := recipient.Send(protocol.NewIncomingMessage(sess.UserID, msg["payload"])); err != nil {
		// The recipient closed between resolution and delivery. Reporting
		// it would reveal presence, so the send error is dropped.
		slog.Debug("forward dropped", "recipient_id", recipientID, "error", err)
	}
}
