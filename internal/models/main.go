// Package models defines the data exchanged between the chat platform,
// the account backend and the bot's components.
package models

import (
	"slices"
	"strings"
)

// Actor is the chat user behind a single inbound command.
type Actor struct {
	// ID is the platform user id.
	ID string
	// Username is the account name without discriminator.
	Username string
	// DisplayName is the server nickname, falling back to the global name.
	DisplayName string
	// Tag is the full user tag ("name#1234", or the bare username for migrated accounts).
	Tag string
	// Roles are the role ids held in the origin server.
	Roles []string
	// ChannelID is the channel the command was posted in.
	ChannelID string
	// GuildID is the server the command was posted in; empty for direct messages.
	GuildID string
}

// HasRole reports whether the actor holds roleID.
func (a Actor) HasRole(roleID string) bool {
	return roleID != "" && slices.Contains(a.Roles, roleID)
}

// Credential is what the backend hands out once on registration.
// It is transported to the account holder and never stored.
type Credential struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TOTPSecret string `json:"totp_secret"`
	// QRCode is a data URI ("data:image/png;base64,...").
	QRCode string `json:"qr_code"`
}

// HWIDStatus tells whether an account is bound to a hardware id.
type HWIDStatus string

const (
	// HWIDSet means the account is locked to a device.
	HWIDSet HWIDStatus = "Set"
	// HWIDNotSet means the next login binds a device.
	HWIDNotSet HWIDStatus = "Not Set"
)

// AccountSummary is one row of the backend's account listing.
type AccountSummary struct {
	Email      string     `json:"email"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *Timestamp `json:"expires_at"`
	LastLogin  *Timestamp `json:"last_login"`
	CreatedAt  *Timestamp `json:"created_at"`
	HWIDStatus HWIDStatus `json:"hwid_status"`
	// DiscordID is empty for accounts created before linking existed.
	DiscordID string `json:"discord_id"`
}

// UserInfo is the detailed view of a single account.
type UserInfo struct {
	AccountSummary
	// HWID is the bound hardware id, empty when unset.
	HWID string `json:"hwid"`
	Note string `json:"note"`
}

// Status derives the HWID status from the raw hardware id.
func (u UserInfo) Status() HWIDStatus {
	if u.HWID != "" {
		return HWIDSet
	}
	return HWIDNotSet
}

// DurationChange is the backend's answer to a subscription adjustment.
type DurationChange struct {
	// NewExpiry is passed through verbatim as the backend formats it.
	NewExpiry string `json:"new_expiry"`
	DiscordID string `json:"discord_id"`
}

// NormalizeEmail trims and lower-cases an address before it is used as a backend key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LooksLikeEmail applies the same shallow check the registration form does.
func LooksLikeEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}
