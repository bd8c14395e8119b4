package bot

import (
	"strings"

	"github.com/atinyakov/silicabot/internal/models"
)

// Message is an inbound chat message, already detached from the platform SDK.
type Message struct {
	ID        string
	Content   string
	ChannelID string
	// GuildID is empty for direct messages.
	GuildID string
	Author  models.Actor
	// FromBot is set for messages written by bot accounts, including this one.
	FromBot bool
}

// parse splits content into a command name and positional arguments.
// ok is false when content does not start with prefix or names nothing.
func parse(content, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
