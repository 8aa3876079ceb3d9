package relay

import (
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/Ruz-on-git/FiguraJustCommunicateServer/internal/protocol"
	"github.com/Ruz-on-git/FiguraJustCommunicateServer/internal/registry"
)

// register runs the one-shot registration handshake: a single message is
// awaited within the configured timeout and must be a schema-valid register
// with a unique, non-empty user id. Only a successful return leaves state in
// the registry. The failure branches are deliberate and distinct:
//
//   - timeout, transport closure, or an undecodable payload: the connection
//     is discarded without a response;
//   - a decodable message that is not a valid register: close 1002;
//   - an empty or already-taken user id: close 1008.
func (s *Server) register(c *client, room string) bool {
	data, err := c.readWithin(s.cfg.RegisterTimeout)
	if err != nil {
		return false
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		return false
	}

	if !protocol.Validate(msg) || protocol.TypeOf(msg) != protocol.TypeRegister {
		c.closeWith(websocket.CloseProtocolError, "Protocol error: First message must be a valid 'register' type.")
		return false
	}

	userID := protocol.String(msg, "user_id")
	whitelist := registry.NewWhitelistFromList(protocol.StringList(msg, "whitelist"))

	if err := s.reg.Register(c, registry.NewSession(userID, room, whitelist)); err != nil {
		s.metrics.RegistrationsRejected.Add(1)
		c.closeWith(websocket.ClosePolicyViolation, "User ID is invalid or already in use.")
		return false
	}

	s.metrics.RegistrationsAccepted.Add(1)
	slog.Info("client registered", "user_id", userID, "room", room, "conn_id", c.ID())
	return true
}
