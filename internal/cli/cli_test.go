package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "splitledger", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"},
		{"verify"},
		{"balances"},
		{"tx", "add"},
		{"tx", "delete"},
		{"tx", "list"},
		{"directory", "user", "add"},
		{"directory", "group", "add"},
		{"directory", "group", "join"},
		{"directory", "group", "leave"},
		{"directory", "group", "show"},
		{"token"},
	}

	for _, path := range commands {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serveCmd.Flags().Lookup("addr"))
}

// testEnv is a config file pointing at a fresh SQLite database.
type testEnv struct {
	configPath string
	dbPath     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(dir, "splitledger.yaml"),
		dbPath:     filepath.Join(dir, "ledger.db"),
	}
	content := fmt.Sprintf("storage:\n  driver: sqlite\n  path: %q\nlog:\n  level: error\nledger:\n  currency: USD\n", env.dbPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "splitledger %s", strings.Join(args, " "))
	return out
}

func (e *testEnv) provisionTrip(t *testing.T) {
	t.Helper()
	e.mustRun(t, "directory", "user", "add", "alice", "--name", "Alice")
	e.mustRun(t, "directory", "user", "add", "bob", "--name", "Bob")
	e.mustRun(t, "directory", "user", "add", "carol", "--name", "Carol")
	e.mustRun(t, "directory", "group", "add", "trip", "--name", "Trip", "--member", "alice,bob,carol")
}

func TestThreeFriendsEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.provisionTrip(t)

	out := env.mustRun(t, "tx", "add", "trip", "--payer", "alice", "--amount", "90.00", "--with", "alice,bob,carol")
	assert.Contains(t, out, "alice paid $90.00")
	env.mustRun(t, "tx", "add", "trip", "--payer", "bob", "--amount", "60", "--with", "bob,carol")

	newGolden(t).Assert(t, "balances_three_friends", []byte(env.mustRun(t, "balances", "trip")))

	var report balancesReport
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "--format", "json", "balances", "trip")), &report))
	assert.Equal(t, map[string]int64{"alice": 6000, "bob": 0, "carol": -6000}, report.Positions)

	out = env.mustRun(t, "verify")
	assert.Equal(t, "trip: ok (2 transactions, 3 entries, net 0)\n", out)

	out = env.mustRun(t, "tx", "list", "trip")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestTxAddSplitKindsAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.provisionTrip(t)

	out := env.mustRun(t, "tx", "add", "trip", "--id", "txn_pct", "--payer", "alice", "--amount", "10.00",
		"--split", "percentage", "--share", "bob=33.33", "--share", "carol=66.67")
	assert.Contains(t, out, "bob $3.33")
	assert.Contains(t, out, "carol $6.67")

	out = env.mustRun(t, "tx", "add", "trip", "--payer", "carol", "--amount", "25.00",
		"--split", "itemized", "--item", "20.00:alice,bob:Pizza", "--item", "5.00:carol")
	assert.Contains(t, out, "alice $10.00")
	assert.Contains(t, out, "carol $5.00")

	out = env.mustRun(t, "tx", "add", "trip", "--payer", "bob", "--amount", "7.00",
		"--split", "exact", "--share", "alice=7.00")
	assert.Contains(t, out, "alice $7.00")

	out = env.mustRun(t, "tx", "delete", "txn_pct")
	assert.Contains(t, out, "Deleted txn_pct")

	_, err := env.run(t, "tx", "delete", "txn_pct")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out = env.mustRun(t, "tx", "list", "trip", "--all")
	assert.Contains(t, out, "txn_pct")
	assert.Contains(t, out, "[deleted]")

	env.mustRun(t, "verify", "trip")
}

func TestTxAddRejected(t *testing.T) {
	env := newTestEnv(t)
	env.provisionTrip(t)

	tests := []struct {
		name string
		args []string
	}{
		{"outsider", []string{"--payer", "alice", "--amount", "10", "--with", "mallory"}},
		{"too many decimals", []string{"--payer", "alice", "--amount", "10.001", "--with", "bob"}},
		{"bad share", []string{"--payer", "alice", "--amount", "10", "--split", "exact", "--share", "bob"}},
		{"shares do not sum", []string{"--payer", "alice", "--amount", "10", "--split", "exact", "--share", "bob=3"}},
		{"unknown kind", []string{"--payer", "alice", "--amount", "10", "--split", "weighted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, append([]string{"tx", "add", "trip"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}

	out := env.mustRun(t, "balances", "trip")
	assert.Contains(t, out, "all settled")
}

func TestVerifyDetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	env.provisionTrip(t)
	env.mustRun(t, "tx", "add", "trip", "--payer", "alice", "--amount", "30", "--with", "alice,bob,carol")

	// Tamper with a balance behind the engine's back.
	store, err := sqlite.New(env.dbPath)
	require.NoError(t, err)
	err = store.WithTx(context.Background(), func(tx storage.Tx) error {
		return tx.ApplyDelta(context.Background(), "trip", "bob", "alice", 1)
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := env.run(t, "verify", "trip")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trip: MISMATCH")
	assert.Contains(t, out, "alice/bob stored -1001, log says -1000")
}

func TestDirectoryMembership(t *testing.T) {
	env := newTestEnv(t)
	env.provisionTrip(t)

	env.mustRun(t, "directory", "group", "leave", "trip", "carol")
	out := env.mustRun(t, "directory", "group", "show", "trip")
	assert.Equal(t, "trip (Trip): alice, bob\n", out)

	// Departed members still count for transactions.
	env.mustRun(t, "tx", "add", "trip", "--payer", "alice", "--amount", "20", "--with", "alice,carol")

	env.mustRun(t, "directory", "group", "join", "trip", "carol")
	out = env.mustRun(t, "directory", "group", "show", "trip")
	assert.Equal(t, "trip (Trip): alice, bob, carol\n", out)

	_, err := env.run(t, "directory", "user", "add", "alice")
	assert.Error(t, err, "duplicate user should be rejected")

	userID := strings.TrimSpace(env.mustRun(t, "directory", "user", "add"))
	assert.True(t, strings.HasPrefix(userID, "usr_"), "generated ID %q", userID)
}

func TestTokenCommand(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "token", "alice")
	require.Error(t, err, "token needs a secret")

	t.Setenv("JWT_SECRET", "test-secret")
	token := strings.TrimSpace(env.mustRun(t, "token", "alice", "--email", "alice@example.com", "--ttl", "1h"))

	claims, err := auth.NewJWTManager("test-secret", time.Hour).Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestInvalidFormat(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "--format", "yaml", "verify")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
