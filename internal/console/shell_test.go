package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/silicabot/internal/backend"
	"github.com/atinyakov/silicabot/internal/models"
)

type fakeBackend struct {
	users []models.AccountSummary
	info  *models.UserInfo
	err   error

	calls []string
	notes []string
	days  []int
}

func (f *fakeBackend) ListUsers(context.Context) ([]models.AccountSummary, error) {
	f.calls = append(f.calls, "list-users")
	return f.users, f.err
}

func (f *fakeBackend) UserInfo(_ context.Context, email string) (*models.UserInfo, error) {
	f.calls = append(f.calls, "user-info "+email)
	return f.info, f.err
}

func (f *fakeBackend) ResetHWID(_ context.Context, email string) error {
	f.calls = append(f.calls, "reset-hwid "+email)
	return f.err
}

func (f *fakeBackend) Activate(_ context.Context, email string, days int) (string, error) {
	f.calls = append(f.calls, "activate "+email)
	f.days = append(f.days, days)
	return "42", f.err
}

func (f *fakeBackend) AddDuration(_ context.Context, email string, days int) (*models.DurationChange, error) {
	f.calls = append(f.calls, "add-duration "+email)
	f.days = append(f.days, days)
	if f.err != nil {
		return nil, f.err
	}
	return &models.DurationChange{NewExpiry: "2025-02-01"}, nil
}

func (f *fakeBackend) RemoveDuration(_ context.Context, email string, days int) (*models.DurationChange, error) {
	f.calls = append(f.calls, "remove-duration "+email)
	f.days = append(f.days, days)
	if f.err != nil {
		return nil, f.err
	}
	return &models.DurationChange{NewExpiry: "2025-01-01"}, nil
}

func (f *fakeBackend) SetNote(_ context.Context, email, note string) error {
	f.calls = append(f.calls, "set-note "+email)
	f.notes = append(f.notes, note)
	return f.err
}

func run(t *testing.T, b *fakeBackend, input string) string {
	t.Helper()
	var out bytes.Buffer
	New(b, strings.NewReader(input), &out, zap.NewNop()).Run(context.Background())
	return out.String()
}

func TestShell_Commands(t *testing.T) {
	b := &fakeBackend{}
	out := run(t, b, "activate A@B.com 30\nadd-duration a@b.com 5\nremove-duration a@b.com 2\nreset-hwid a@b.com\nexit\nlist-users\n")

	assert.Equal(t, []string{
		"activate a@b.com",
		"add-duration a@b.com",
		"remove-duration a@b.com",
		"reset-hwid a@b.com",
	}, b.calls)
	assert.Equal(t, []int{30, 5, 2}, b.days)
	assert.Contains(t, out, "Activated a@b.com for 30 days (discord 42)")
	assert.Contains(t, out, "Added 5 days for a@b.com, new expiry 2025-02-01")
	assert.Contains(t, out, "Removed 2 days for a@b.com, new expiry 2025-01-01")
	assert.Contains(t, out, "HWID reset for a@b.com")
	assert.True(t, strings.HasSuffix(out, "Bye\n"))
}

func TestShell_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "missing args", input: "activate a@b.com\n", want: "Usage: activate <email> <days>"},
		{name: "zero days", input: "add-duration a@b.com 0\n", want: "Days must be a positive number"},
		{name: "non numeric days", input: "remove-duration a@b.com ten\n", want: "Days must be a positive number"},
		{name: "bad email", input: "user-info nobody\n", want: "Invalid email address"},
		{name: "unknown", input: "reset-all-users\n", want: "Unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			out := run(t, b, tt.input)
			assert.Contains(t, out, tt.want)
			assert.Empty(t, b.calls)
		})
	}
}

func TestShell_SetNote(t *testing.T) {
	b := &fakeBackend{}
	out := run(t, b, "set-note a@b.com paid via paypal\nset-note a@b.com\n  prompted note  \nset-note a@b.com\n   \n")

	assert.Equal(t, []string{"paid via paypal", "prompted note"}, b.notes)
	assert.Equal(t, 2, strings.Count(out, "Enter note: "))
	assert.Contains(t, out, "Note must not be empty")
	assert.Equal(t, 2, strings.Count(out, "Note updated for a@b.com"))
}

func TestShell_ListAndInfo(t *testing.T) {
	expires := models.Timestamp{Time: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	b := &fakeBackend{
		users: []models.AccountSummary{
			{Email: "a@b.com", IsActive: true, ExpiresAt: &expires, HWIDStatus: models.HWIDSet},
			{Email: "c@d.com", HWIDStatus: models.HWIDNotSet},
		},
		info: &models.UserInfo{
			AccountSummary: models.AccountSummary{Email: "a@b.com", IsActive: true, ExpiresAt: &expires},
			HWID:           "abc",
		},
	}
	out := run(t, b, "list-users\nuser-info a@b.com\n")

	assert.Contains(t, out, "expires 2025-01-02")
	assert.Contains(t, out, "Total users: 2")
	assert.Contains(t, out, "Last login: Never")
	assert.Contains(t, out, "HWID:       Set")
	assert.Contains(t, out, "Note:       None")
}

func TestShell_BackendError(t *testing.T) {
	b := &fakeBackend{err: &backend.Error{Op: "reset-hwid", StatusCode: 404, Message: "User not found"}}
	out := run(t, b, "reset-hwid a@b.com\n")

	require.Len(t, b.calls, 1)
	assert.Contains(t, out, "Error: User not found")
	assert.NotContains(t, out, "HWID reset for")
}

func TestShell_StopsOnCancelledContext(t *testing.T) {
	b := &fakeBackend{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	New(b, strings.NewReader("list-users\n"), &out, zap.NewNop()).Run(ctx)

	assert.Empty(t, b.calls)
	assert.Empty(t, out.String())
}
