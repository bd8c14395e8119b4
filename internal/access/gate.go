// Package access decides who may use the bot, and where.
//
// Every check is a pure function of a Policy snapshot and its arguments, so a
// configuration reload never changes the outcome of a check already in flight.
package access

import (
	"slices"

	"github.com/atinyakov/silicabot/internal/models"
)

// Policy is an immutable snapshot of the access configuration.
// Empty fields disable the corresponding restriction.
type Policy struct {
	// BootstrapAdminIDs are user ids with unconditional admin rights.
	BootstrapAdminIDs []string
	// AdminRoleID grants admin rights to its holders.
	AdminRoleID string
	// AllowedRoleID restricts who may use non-admin commands.
	AllowedRoleID string
	// AllowedChannelIDs restricts where commands are accepted.
	AllowedChannelIDs []string
	// AuthorizedServerID restricts the bot to a single server.
	AuthorizedServerID string
}

// IsBootstrapAdmin reports whether the actor is on the bootstrap allow-list.
func (p Policy) IsBootstrapAdmin(actor models.Actor) bool {
	return actor.ID != "" && slices.Contains(p.BootstrapAdminIDs, actor.ID)
}

// IsAdmin reports whether the actor may run admin commands.
func (p Policy) IsAdmin(actor models.Actor) bool {
	if p.IsBootstrapAdmin(actor) {
		return true
	}
	if p.AdminRoleID == "" {
		return false
	}
	return actor.HasRole(p.AdminRoleID)
}

// CanUseBot reports whether the actor may run user commands.
func (p Policy) CanUseBot(actor models.Actor) bool {
	if p.AllowedRoleID == "" {
		return true
	}
	return actor.HasRole(p.AllowedRoleID) || p.IsAdmin(actor)
}

// IsAllowedChannel reports whether commands are accepted in channelID.
func (p Policy) IsAllowedChannel(channelID string) bool {
	if len(p.AllowedChannelIDs) == 0 {
		return true
	}
	return slices.Contains(p.AllowedChannelIDs, channelID)
}

// IsAuthorizedServer reports whether commands are accepted in serverID.
func (p Policy) IsAuthorizedServer(serverID string) bool {
	if p.AuthorizedServerID == "" {
		return true
	}
	return serverID == p.AuthorizedServerID
}
