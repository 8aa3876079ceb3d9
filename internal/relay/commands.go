package relay

import (
	"fmt"
	"log/slog"

	"github.com/Ruz-on-git/FiguraJustCommunicateServer/internal/protocol"
)

// The whitelist commands mutate the calling session's whitelist only, never
// the recipient's, and acknowledge with the resulting whitelist rendered as
// an ordered list (["*"] while in the wildcard state).

func (s *Server) whitelistAdd(c *client, msg map[string]any) {
	id := protocol.String(msg, "user_id")

	entries, converted, err := s.reg.AddAllowed(c, id)
	if err != nil {
		return
	}

	action := "added"
	if converted {
		action = "converted from wildcard and added"
	}

	s.metrics.WhitelistUpdates.Add(1)
	s.ack(c, fmt.Sprintf("User '%s' was %s.", id, action), entries)
}

func (s *Server) whitelistRemove(c *client, msg map[string]any) {
	id := protocol.String(msg, "user_id")

	entries, err := s.reg.RemoveAllowed(c, id)
	if err != nil {
		return
	}

	s.metrics.WhitelistUpdates.Add(1)
	s.ack(c, fmt.Sprintf("User '%s' was removed.", id), entries)
}

func (s *Server) whitelistToggleWildcard(c *client, msg map[string]any) {
	enabled := protocol.Bool(msg, "enabled")

	entries, err := s.reg.SetWildcard(c, enabled)
	if err != nil {
		return
	}

	status := "disabled (accepting from no one)"
	if enabled {
		status = "enabled (accepting from all in room)"
	}

	s.metrics.WhitelistUpdates.Add(1)
	s.ack(c, fmt.Sprintf("Wildcard whitelist has been %s.", status), entries)
}

func (s *Server) ack(c *client, action string, entries []string) {
	if err := c.Send(protocol.NewWhitelistUpdated(action, entries)); err != nil {
		slog.Debug("whitelist ack dropped", "conn_id", c.ID(), "error", err)
	}
}
