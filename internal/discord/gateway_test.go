package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/atinyakov/silicabot/internal/bot"
	"github.com/atinyakov/silicabot/internal/models"
)

func TestMessageFromEvent(t *testing.T) {
	tests := []struct {
		name string
		in   *discordgo.MessageCreate
		want bot.Message
	}{
		{
			name: "server message with nickname and roles",
			in: &discordgo.MessageCreate{Message: &discordgo.Message{
				ID:        "m1",
				Content:   "!help",
				ChannelID: "c1",
				GuildID:   "g1",
				Author:    &discordgo.User{ID: "u1", Username: "alice", GlobalName: "Alice A", Discriminator: "0"},
				Member:    &discordgo.Member{Nick: "Al", Roles: []string{"r1"}},
			}},
			want: bot.Message{
				ID:        "m1",
				Content:   "!help",
				ChannelID: "c1",
				GuildID:   "g1",
				Author: models.Actor{
					ID:          "u1",
					Username:    "alice",
					DisplayName: "Al",
					Tag:         "alice",
					Roles:       []string{"r1"},
					ChannelID:   "c1",
					GuildID:     "g1",
				},
			},
		},
		{
			name: "direct message from a bot",
			in: &discordgo.MessageCreate{Message: &discordgo.Message{
				ID:        "m2",
				Content:   "yes",
				ChannelID: "dm",
				Author:    &discordgo.User{ID: "b1", Username: "helper", Discriminator: "1234", Bot: true},
			}},
			want: bot.Message{
				ID:        "m2",
				Content:   "yes",
				ChannelID: "dm",
				FromBot:   true,
				Author: models.Actor{
					ID:          "b1",
					Username:    "helper",
					DisplayName: "helper",
					Tag:         "helper#1234",
					ChannelID:   "dm",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MessageFromEvent(tt.in))
		})
	}
}

func TestGuildIDs(t *testing.T) {
	state := discordgo.NewState()
	state.Guilds = []*discordgo.Guild{{ID: "g1"}, {ID: "g2"}}

	assert.Equal(t, []string{"g1", "g2"}, GuildIDs(state)())
}
