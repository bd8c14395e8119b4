// Package discord connects the bot to the Discord gateway.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/bot"
	"github.com/atinyakov/silicabot/internal/models"
)

// Activity is shown as the bot's "watching" status.
const Activity = "Silica Client Auth"

// Intents are the gateway events the bot subscribes to.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentMessageContent

// MessageHandler consumes inbound chat messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg bot.Message)
}

// NewSession creates an unopened session for a bot token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	return s, nil
}

// Gateway feeds gateway events into a MessageHandler.
type Gateway struct {
	session *discordgo.Session
	handler MessageHandler
	log     *zap.Logger
	ctx     context.Context
}

// NewGateway creates a Gateway over session.
func NewGateway(session *discordgo.Session, handler MessageHandler, log *zap.Logger) *Gateway {
	return &Gateway{session: session, handler: handler, log: log, ctx: context.Background()}
}

// Run opens the connection and keeps it until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	g.ctx = ctx
	removeReady := g.session.AddHandler(g.onReady)
	removeMessage := g.session.AddHandler(g.onMessage)
	defer removeReady()
	defer removeMessage()

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	<-ctx.Done()

	g.log.Info("closing discord gateway")
	if err := g.session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	return nil
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	g.log.Info("bot is ready",
		zap.String("user", r.User.String()),
		zap.Int("guilds", len(r.Guilds)),
	)
	if err := s.UpdateWatchStatus(0, Activity); err != nil {
		g.log.Warn("could not set presence", zap.Error(err))
	}
}

func (g *Gateway) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	g.handler.Handle(g.ctx, MessageFromEvent(m))
}

// MessageFromEvent detaches a gateway message from the SDK types.
func MessageFromEvent(m *discordgo.MessageCreate) bot.Message {
	msg := bot.Message{
		ID:        m.ID,
		Content:   m.Content,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
	}
	if m.Author == nil {
		return msg
	}

	msg.FromBot = m.Author.Bot
	msg.Author = models.Actor{
		ID:          m.Author.ID,
		Username:    m.Author.Username,
		DisplayName: m.Author.Username,
		Tag:         m.Author.String(),
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
	}
	if m.Author.GlobalName != "" {
		msg.Author.DisplayName = m.Author.GlobalName
	}
	if m.Member != nil {
		msg.Author.Roles = m.Member.Roles
		if m.Member.Nick != "" {
			msg.Author.DisplayName = m.Member.Nick
		}
	}
	return msg
}

// GuildIDs lists the servers in the session state, in the order the gateway reported them.
func GuildIDs(state *discordgo.State) func() []string {
	return func() []string {
		state.RLock()
		defer state.RUnlock()
		ids := make([]string, 0, len(state.Guilds))
		for _, g := range state.Guilds {
			ids = append(ids, g.ID)
		}
		return ids
	}
}
