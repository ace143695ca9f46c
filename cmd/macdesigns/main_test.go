package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"macdesigns/internal/config"
	"macdesigns/internal/gate"
	"macdesigns/internal/store"
)

const testPassword = "MACDesigns2024!"

func newCheckOptions(t *testing.T, states gate.SecurityStateStore, input string, now time.Time) (checkOptions, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return checkOptions{
		In:        strings.NewReader(input),
		Out:       &out,
		Allowlist: gate.NewAllowlist(testPassword),
		States:    states,
		Delay:     gate.NoDelay{},
		IPs: gate.IPLookupFunc(func(ctx context.Context) (string, error) {
			return "", errors.New("offline")
		}),
		Clock:    func() time.Time { return now },
		Interval: time.Millisecond,
		Logger:   zap.NewNop(),
	}, &out
}

func TestRunCheckLockoutThenAccess(t *testing.T) {
	states := gate.NewFileStore(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts, out := newCheckOptions(t, states, "a\nb\nc\n"+testPassword+"\n", now)

	ok, err := runCheck(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, ok)

	text := out.String()
	assert.Contains(t, text, "Incorrect password. 2 attempt(s) remaining.")
	assert.Contains(t, text, "Incorrect password. 1 attempt(s) remaining.")
	assert.Contains(t, text, "Too many attempts. Locked for 15:00.")
	assert.Contains(t, text, "Locked: 14:59\n")
	assert.Contains(t, text, "Locked: 0:00\n")
	assert.True(t, strings.HasSuffix(text, "Access granted.\n"))

	state, found, err := states.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Zero(t, state.Attempts)
	assert.True(t, state.BlockedUntil.IsZero())
	assert.Equal(t, gate.UnknownIP, state.IPAddress)
}

func TestRunCheckAttemptsCarryOver(t *testing.T) {
	states := gate.NewFileStore(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	opts, _ := newCheckOptions(t, states, "wrong\n", now)
	ok, err := runCheck(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, ok, "input ended before a correct password")

	opts, out := newCheckOptions(t, states, "", now)
	ok, err = runCheck(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Password (2 attempts remaining): ")
}

func TestRunCheckComparesInputExactly(t *testing.T) {
	states := gate.NewFileStore(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	opts, out := newCheckOptions(t, states, "  "+testPassword+"  \n", now)
	ok, err := runCheck(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, ok, "surrounding spaces are part of the candidate")
	assert.Contains(t, out.String(), "Incorrect password. 2 attempt(s) remaining.")
	assert.NotContains(t, out.String(), "Access granted.")

	// A CRLF line ending is not part of the candidate.
	opts, out = newCheckOptions(t, states, testPassword+"\r\n", now)
	ok, err = runCheck(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Password (2 attempts remaining): Access granted.\n", out.String())
}

func TestRunCheckResumesPersistedLockout(t *testing.T) {
	states := gate.NewFileStore(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, states.Save(context.Background(), gate.SecurityState{
		Attempts:      3,
		LastAttemptAt: now.Add(-15 * time.Minute),
		BlockedUntil:  now.Add(2 * time.Second),
	}))

	opts, out := newCheckOptions(t, states, testPassword+"\n", now)
	ok, err := runCheck(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, ok)

	want := "Too many attempts. Locked for 0:02.\n" +
		"Locked: 0:01\n" +
		"Locked: 0:00\n" +
		"Password (3 attempts remaining): " +
		"Access granted.\n"
	assert.Equal(t, want, out.String())
}

func TestRunCheckCancelledDuringLockout(t *testing.T) {
	states := gate.NewFileStore(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, states.Save(context.Background(), gate.SecurityState{
		Attempts:     3,
		BlockedUntil: now.Add(gate.LockoutDuration),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	opts, _ := newCheckOptions(t, states, "", now)
	opts.Interval = time.Hour
	time.AfterFunc(20*time.Millisecond, cancel)

	ok, err := runCheck(ctx, opts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)

	state, _, err := states.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, state.Attempts, "cancelling must not clear the lockout")
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	dataPath := filepath.Join(dir, "data")

	input := strings.Join([]string{
		dataPath,
		"",       // listen address
		"Studio", // title
		"",       // owner
		"",       // email
		"",       // phone
		"y",      // replace passwords
		"one, ,two",
		"n", // bcrypt
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, runInit(strings.NewReader(input), &out, envPath))
	assert.Contains(t, out.String(), "Generated a new PROFILE_SECRET.")

	written, err := godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, dataPath, written["DATA_PATH"])
	assert.Equal(t, ":8080", written["LISTEN_ADDR"])
	secret := written["PROFILE_SECRET"]
	assert.Len(t, secret, 43)

	mgr, err := config.NewManager(filepath.Join(dataPath, "site.yaml"))
	require.NoError(t, err)
	site := mgr.Get()
	assert.Equal(t, "Studio", site.Title)
	assert.Equal(t, config.DefaultSite().Owner, site.Owner)
	assert.Equal(t, []string{"one", "two"}, site.Passwords)

	// A second run keeps everything on empty answers.
	out.Reset()
	require.NoError(t, runInit(strings.NewReader(strings.Repeat("\n", 8)), &out, envPath))
	assert.NotContains(t, out.String(), "Generated a new PROFILE_SECRET.")

	written, err = godotenv.Read(envPath)
	require.NoError(t, err)
	assert.Equal(t, secret, written["PROFILE_SECRET"])
	assert.Equal(t, dataPath, written["DATA_PATH"])

	require.NoError(t, mgr.Reload())
	assert.Equal(t, []string{"one", "two"}, mgr.Get().Passwords)
}

func TestHashPasswords(t *testing.T) {
	passwords := []string{"alpha"}
	require.NoError(t, hashPasswords(passwords, true))
	assert.True(t, strings.HasPrefix(passwords[0], "$2"))
	assert.True(t, gate.NewAllowlist(passwords...).Contains("alpha"))

	plain := []string{"beta"}
	require.NoError(t, hashPasswords(plain, false))
	assert.Equal(t, []string{"beta"}, plain)
}

func TestPrintLockouts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var out bytes.Buffer
	require.NoError(t, printLockouts(&out, nil, now))
	assert.Equal(t, "No active lockouts.\n", out.String())

	out.Reset()
	require.NoError(t, printLockouts(&out, []store.Lockout{{
		ProfileID: "p-1",
		State: gate.SecurityState{
			Attempts:      3,
			LastAttemptAt: now.Add(-time.Minute),
			BlockedUntil:  now.Add(14 * time.Minute),
			IPAddress:     "203.0.113.9",
		},
		BlockedUntil: now.Add(14 * time.Minute),
	}}, now))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"PROFILE", "ATTEMPTS", "REMAINING", "IP", "LAST", "ATTEMPT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"p-1", "3", "14:00", "203.0.113.9", "2026-03-01T11:59:00Z"}, strings.Fields(lines[1]))
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{900, "15:00"},
		{61, "1:01"},
		{9, "0:09"},
		{0, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRemaining(tt.seconds))
	}
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = newLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = newLogger("bogus", false)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
