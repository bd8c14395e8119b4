// Package bot turns chat messages into account operations.
//
// A message goes through the server gate, the channel gate and the command's
// permission check, in that order, before its handler runs. Each handler
// returns either the reply embed or an error; the Dispatcher turns the error
// into exactly one reply, so no failure reaches the platform event loop.
package bot

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/access"
	"github.com/atinyakov/silicabot/internal/confirm"
	"github.com/atinyakov/silicabot/internal/models"
	"github.com/atinyakov/silicabot/internal/notify"
)

// Backend is the account backend as the command handlers use it.
type Backend interface {
	CheckAccountExists(ctx context.Context, discordID string) (bool, error)
	Register(ctx context.Context, email, discordID string) (*models.Credential, error)
	Activate(ctx context.Context, email string, days int) (string, error)
	AddDuration(ctx context.Context, email string, days int) (*models.DurationChange, error)
	RemoveDuration(ctx context.Context, email string, days int) (*models.DurationChange, error)
	ResetAccount(ctx context.Context, email string) (string, error)
	ResetHWID(ctx context.Context, email string) error
	UserInfo(ctx context.Context, email string) (*models.UserInfo, error)
	ListUsers(ctx context.Context) ([]models.AccountSummary, error)
	SetNote(ctx context.Context, email, note string) error
	ResetAllUsers(ctx context.Context) (int, error)
}

// Notifier delivers private messages to account holders.
type Notifier interface {
	ResolveRecipient(ctx context.Context, userID, guildID string) (*models.Actor, error)
	DeliverRegistration(ctx context.Context, recipientID string, cred models.Credential, isActive bool, durationDays int) (notify.Report, error)
	BestEffort(ctx context.Context, guildID, userID, reason string, parts ...notify.Part)
}

// Chat posts replies to channels.
type Chat interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Settings is the live configuration the dispatcher reads once per message.
type Settings interface {
	Policy() access.Policy
	Prefix() string
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Backend       Backend
	Notifier      Notifier
	Chat          Chat
	Settings      Settings
	Confirmations *confirm.Registry
	Log           *zap.Logger
}

// Dispatcher routes chat messages to command handlers.
type Dispatcher struct {
	backend  Backend
	notifier Notifier
	chat     Chat
	settings Settings
	confirms *confirm.Registry
	log      *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(d Deps) *Dispatcher {
	return &Dispatcher{
		backend:  d.Backend,
		notifier: d.Notifier,
		chat:     d.Chat,
		settings: d.Settings,
		confirms: d.Confirmations,
		log:      d.Log,
	}
}

// request is the per-command state handed to a handler.
type request struct {
	id      string
	command Command
	msg     Message
	args    []string
	policy  access.Policy
	prefix  string
	log     *zap.Logger
}

func (r *request) actor() models.Actor {
	return r.msg.Author
}

type handlerFunc func(ctx context.Context, req *request) (*discordgo.MessageEmbed, error)

// Handle processes one inbound message. It never panics and never returns an
// error: every outcome is either silence or a reply in the origin channel.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	if msg.FromBot {
		return
	}
	if d.confirms != nil && d.confirms.Offer(msg.Author.ID, msg.ChannelID, msg.Content) {
		return
	}

	prefix := d.settings.Prefix()
	name, args, ok := parse(msg.Content, prefix)
	if !ok {
		return
	}

	policy := d.settings.Policy()
	req := &request{
		id:     uuid.NewString(),
		msg:    msg,
		args:   args,
		policy: policy,
		prefix: prefix,
	}
	req.log = d.log.With(
		zap.String("request_id", req.id),
		zap.String("command", name),
		zap.String("actor_id", msg.Author.ID),
		zap.String("channel_id", msg.ChannelID),
		zap.String("guild_id", msg.GuildID),
	)

	if !policy.IsAuthorizedServer(msg.GuildID) {
		d.reply(req, replyFor(&AuthorizationError{Gate: "server", Message: DenyServer}, req.log))
		return
	}
	if !policy.IsAllowedChannel(msg.ChannelID) {
		d.reply(req, replyFor(&AuthorizationError{Gate: "channel", Message: DenyChannel}, req.log))
		return
	}

	req.command = ParseCommand(name)
	h := d.handler(req.command)
	if h == nil {
		return
	}

	e, err := d.run(ctx, req, h)
	if err != nil {
		e = replyFor(err, req.log)
	}
	if e != nil {
		d.reply(req, e)
	}
}

// run checks the command's permission and calls h, converting a panic into an error.
func (d *Dispatcher) run(ctx context.Context, req *request, h handlerFunc) (e *discordgo.MessageEmbed, err error) {
	defer func() {
		if r := recover(); r != nil {
			req.log.Error("handler panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			e, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()

	if err := authorize(req); err != nil {
		return nil, err
	}
	if req.policy.IsBootstrapAdmin(req.actor()) && req.command.Permission() == PermissionAdmin {
		req.log.Warn("bootstrap admin action",
			zap.String("actor_tag", req.actor().Tag),
			zap.Strings("args", req.args),
		)
	}

	e, err = h(ctx, req)
	if err == nil {
		req.log.Info("command executed")
	}
	return e, err
}

func authorize(req *request) error {
	switch req.command.Permission() {
	case PermissionAdmin:
		if !req.policy.IsAdmin(req.actor()) {
			return &AuthorizationError{Gate: "admin", Message: DenyAdmin}
		}
	case PermissionUser:
		if !req.policy.CanUseBot(req.actor()) {
			return &AuthorizationError{Gate: "user", Message: DenyUser}
		}
	case PermissionNone:
	}
	return nil
}

// handler returns the handler of c, or nil for unknown commands.
func (d *Dispatcher) handler(c Command) handlerFunc {
	switch c {
	case CommandHelp:
		return d.help
	case CommandRegister:
		return d.register
	case CommandActivate:
		return d.activate
	case CommandAddDuration:
		return d.addDuration
	case CommandRemoveDuration:
		return d.removeDuration
	case CommandResetAccount:
		return d.resetAccount
	case CommandResetHWID:
		return d.resetHWID
	case CommandUserInfo:
		return d.userInfo
	case CommandSetNote:
		return d.setNote
	case CommandListUsers:
		return d.listUsers
	case CommandResetAllUsers:
		return d.resetAllUsers
	case CommandUnknown:
	}
	return nil
}

// reply answers the command message in its channel.
func (d *Dispatcher) reply(req *request, e *discordgo.MessageEmbed) {
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{e}}
	if req.msg.ID != "" {
		data.Reference = &discordgo.MessageReference{
			MessageID: req.msg.ID,
			ChannelID: req.msg.ChannelID,
			GuildID:   req.msg.GuildID,
		}
	}
	if _, err := d.chat.ChannelMessageSendComplex(req.msg.ChannelID, data); err != nil {
		req.log.Warn("could not send reply", zap.Error(err))
	}
}
