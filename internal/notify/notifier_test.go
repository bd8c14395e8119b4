package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/models"
)

type sentMessage struct {
	ChannelID string
	Embed     *discordgo.MessageEmbed
	FileName  string
	FileData  []byte
}

// fakeSession records what the notifier sends.
type fakeSession struct {
	mu         sync.Mutex
	members    map[string][]*discordgo.Member
	listErr    map[string]error
	dmErr      error
	failSendAt map[int]error
	sent       []sentMessage
	sendCalls  int
	pageCalls  []string
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if err, ok := f.failSendAt[f.sendCalls]; ok {
		return nil, err
	}
	msg := sentMessage{ChannelID: channelID}
	if len(data.Embeds) > 0 {
		msg.Embed = data.Embeds[0]
	}
	if len(data.Files) > 0 {
		msg.FileName = data.Files[0].Name
		msg.FileData, _ = io.ReadAll(data.Files[0].Reader)
	}
	f.sent = append(f.sent, msg)
	return &discordgo.Message{ID: "m"}, nil
}

func (f *fakeSession) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	for _, m := range f.members[guildID] {
		if m.User.ID == userID {
			return m, nil
		}
	}
	return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (f *fakeSession) GuildMembers(guildID string, after string, limit int, _ ...discordgo.RequestOption) ([]*discordgo.Member, error) {
	f.pageCalls = append(f.pageCalls, guildID+"/"+after)
	if err := f.listErr[guildID]; err != nil {
		return nil, err
	}
	all := f.members[guildID]
	start := 0
	if after != "" {
		for i, m := range all {
			if m.User.ID == after {
				start = i + 1
			}
		}
	}
	end := min(start+limit, len(all))
	return all[start:end], nil
}

func member(id, username, nick string) *discordgo.Member {
	return &discordgo.Member{
		User: &discordgo.User{ID: id, Username: username, Discriminator: "0"},
		Nick: nick,
	}
}

func newNotifier(s *fakeSession, guilds ...string) *Notifier {
	return New(s, func() []string { return guilds }, zap.NewNop())
}

func TestNotifier_FindByName(t *testing.T) {
	tests := []struct {
		name    string
		members map[string][]*discordgo.Member
		guilds  []string
		query   string
		wantID  string
		wantErr error
	}{
		{
			name:    "username match is case-insensitive",
			members: map[string][]*discordgo.Member{"g1": {member("1", "Alice", "")}},
			guilds:  []string{"g1"},
			query:   "alice",
			wantID:  "1",
		},
		{
			name: "username beats display name in the same server",
			members: map[string][]*discordgo.Member{"g1": {
				member("1", "someone", "alice"),
				member("2", "alice", ""),
			}},
			guilds: []string{"g1"},
			query:  "alice",
			wantID: "2",
		},
		{
			name: "first server scanned wins",
			members: map[string][]*discordgo.Member{
				"g1": {member("1", "x", "alice")},
				"g2": {member("2", "alice", "")},
			},
			guilds: []string{"g1", "g2"},
			query:  "alice",
			wantID: "1",
		},
		{
			name: "full tag",
			members: map[string][]*discordgo.Member{"g1": {{
				User: &discordgo.User{ID: "3", Username: "bob", Discriminator: "1234"},
			}}},
			guilds: []string{"g1"},
			query:  "BOB#1234",
			wantID: "3",
		},
		{
			name:    "no match",
			members: map[string][]*discordgo.Member{"g1": {member("1", "bob", "")}},
			guilds:  []string{"g1"},
			query:   "alice",
			wantErr: ErrRecipientNotFound,
		},
		{
			name:    "blank name",
			guilds:  []string{"g1"},
			query:   "  ",
			wantErr: ErrRecipientNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNotifier(&fakeSession{members: tt.members}, tt.guilds...)
			got, err := n.FindByName(context.Background(), tt.query)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestNotifier_FindByName_Paginates(t *testing.T) {
	all := make([]*discordgo.Member, 0, membersPageSize+1)
	for i := range membersPageSize {
		all = append(all, member(strconv.Itoa(i), "user"+strconv.Itoa(i), ""))
	}
	all = append(all, member("last", "alice", ""))
	s := &fakeSession{members: map[string][]*discordgo.Member{"g1": all}}

	got, err := newNotifier(s, "g1").FindByName(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "last", got.ID)
	assert.Len(t, s.pageCalls, 2)
}

func TestNotifier_FindByName_ListingFailure(t *testing.T) {
	forbidden := errors.New("HTTP 403 Forbidden: missing access")

	t.Run("failure without a match is returned", func(t *testing.T) {
		s := &fakeSession{
			members: map[string][]*discordgo.Member{"g2": {member("1", "bob", "")}},
			listErr: map[string]error{"g1": forbidden},
		}
		_, err := newNotifier(s, "g1", "g2").FindByName(context.Background(), "alice")
		require.Error(t, err)
		assert.ErrorIs(t, err, forbidden)
		assert.NotErrorIs(t, err, ErrRecipientNotFound)
	})

	t.Run("match in another server wins", func(t *testing.T) {
		s := &fakeSession{
			members: map[string][]*discordgo.Member{"g2": {member("2", "alice", "")}},
			listErr: map[string]error{"g1": forbidden},
		}
		got, err := newNotifier(s, "g1", "g2").FindByName(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, "2", got.ID)
	})
}

func TestNotifier_ResolveRecipient(t *testing.T) {
	s := &fakeSession{members: map[string][]*discordgo.Member{"g1": {member("1", "alice", "Al")}}}
	n := newNotifier(s, "g1")

	got, err := n.ResolveRecipient(context.Background(), "1", "g1")
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "1", Username: "alice", DisplayName: "Al", Tag: "alice", GuildID: "g1"}, *got)

	_, err = n.ResolveRecipient(context.Background(), "2", "g1")
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = n.ResolveRecipient(context.Background(), "", "g1")
	assert.ErrorIs(t, err, ErrRecipientNotFound)
}

func TestNotifier_DeliverRegistration(t *testing.T) {
	s := &fakeSession{}
	n := newNotifier(s)
	cred := models.Credential{Email: "a@b.com", Password: "p", TOTPSecret: "s", QRCode: "data:image/png;base64,AAAA"}

	report, err := n.DeliverRegistration(context.Background(), "1", cred, false, 0)
	require.NoError(t, err)

	assert.Equal(t, Report{Total: 3, Sent: 3}, report)
	require.Len(t, s.sent, 3)
	assert.Equal(t, "dm-1", s.sent[0].ChannelID)
	assert.Contains(t, s.sent[0].Embed.Description, "Email: **a@b.com**")
	assert.Contains(t, s.sent[0].Embed.Description, "Password: **p**")
	assert.Equal(t, QRFileName, s.sent[1].FileName)
	assert.Equal(t, []byte{0, 0, 0}, s.sent[1].FileData)
	assert.Contains(t, s.sent[2].Embed.Description, "**Backup Code:** `s`")
	assert.Equal(t, int64(1), n.Stats().Delivered.Load())
}

func TestNotifier_Deliver_AttemptsEveryPart(t *testing.T) {
	s := &fakeSession{failSendAt: map[int]error{2: errors.New("rate limited")}}
	n := newNotifier(s)
	cred := models.Credential{Email: "a@b.com", Password: "p", TOTPSecret: "s", QRCode: "AAAA"}

	report, err := n.DeliverRegistration(context.Background(), "1", cred, true, 30)

	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.True(t, report.Partial())
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Sent)
	assert.Len(t, s.sent, 2)
	assert.Contains(t, s.sent[1].Embed.Description, "Backup Code")
	assert.Equal(t, int64(1), n.Stats().Failed.Load())
}

func TestNotifier_Deliver_MalformedQRCountsAsFailed(t *testing.T) {
	s := &fakeSession{}
	n := newNotifier(s)
	cred := models.Credential{Email: "a@b.com", Password: "p", QRCode: "data:image/png;base64,!!!"}

	report, err := n.DeliverRegistration(context.Background(), "1", cred, false, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQRCode)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Sent)
}

func TestNotifier_Deliver_EmptyQRIsOmitted(t *testing.T) {
	s := &fakeSession{}
	report, err := newNotifier(s).DeliverRegistration(context.Background(), "1", models.Credential{Email: "a@b.com"}, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
}

func TestNotifier_Deliver_ChannelFailure(t *testing.T) {
	s := &fakeSession{dmErr: errors.New("dms closed")}
	report, err := newNotifier(s).Deliver(context.Background(), "1", EmbedPart(&discordgo.MessageEmbed{}))
	require.Error(t, err)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 0, s.sendCalls)
}

func TestNotifier_BestEffort(t *testing.T) {
	s := &fakeSession{
		members: map[string][]*discordgo.Member{"g1": {member("1", "alice", "")}},
		dmErr:   errors.New("dms closed"),
	}
	n := newNotifier(s, "g1")

	n.BestEffort(context.Background(), "g1", "1", "activate", EmbedPart(&discordgo.MessageEmbed{}))
	n.BestEffort(context.Background(), "g1", "404", "activate", EmbedPart(&discordgo.MessageEmbed{}))
	n.BestEffort(context.Background(), "g1", "", "activate", EmbedPart(&discordgo.MessageEmbed{}))

	assert.Equal(t, int64(2), n.Stats().Swallowed.Load())
}

func TestDecodeQRCode(t *testing.T) {
	img, err := DecodeQRCode("data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, img)

	_, err = DecodeQRCode("data:image/png;base64")
	assert.ErrorIs(t, err, ErrInvalidQRCode)
}
