package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/psm/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	cfg      *config.Config
	calls    []string
	name     string
	password string
	err      error
	closed   bool
}

func (f *fakeRunner) Run(context.Context) error {
	f.calls = append(f.calls, "run")
	return f.err
}

func (f *fakeRunner) Migrate(context.Context) error {
	f.calls = append(f.calls, "migrate")
	return f.err
}

func (f *fakeRunner) CreateAdmin(_ context.Context, name, password string) (string, error) {
	f.calls = append(f.calls, "create-admin")
	f.name, f.password = name, password
	return name, f.err
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

func stubRunner(t *testing.T) *fakeRunner {
	t.Helper()
	f := &fakeRunner{}
	orig := newRunner
	newRunner = func(_ context.Context, cfg *config.Config) (runner, error) {
		f.cfg = cfg
		return f, nil
	}
	t.Cleanup(func() { newRunner = orig })
	return f
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_DefaultsToServe(t *testing.T) {
	f := stubRunner(t)

	_, err := execute(t, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"run"}, f.calls)
	assert.True(t, f.closed)
}

func TestServe_FlagsReachConfig(t *testing.T) {
	f := stubRunner(t)

	_, err := execute(t, "", "serve", "--http-addr", ":9999", "--profile", "dev")
	require.NoError(t, err)
	assert.Equal(t, ":9999", f.cfg.HTTPAddr)
	assert.Equal(t, "dev", f.cfg.Profile)
}

func TestServe_InvalidConfigFailsFast(t *testing.T) {
	f := stubRunner(t)

	_, err := execute(t, "", "serve", "--profile", "staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Empty(t, f.calls)
}

func TestMigrate(t *testing.T) {
	f := stubRunner(t)
	f.err = errors.New("migrations failed: boom")

	_, err := execute(t, "", "migrate")
	assert.EqualError(t, err, "migrations failed: boom")
	assert.Equal(t, []string{"migrate"}, f.calls)
	assert.True(t, f.closed)
}

func TestCreateAdmin_PasswordStdin(t *testing.T) {
	f := stubRunner(t)

	out, err := execute(t, "s3cret pass\n", "create-admin", "--name", "root", "--password-stdin")
	require.NoError(t, err)
	assert.Equal(t, "root", f.name)
	assert.Equal(t, "s3cret pass", f.password)
	assert.Contains(t, out, `administrator "root" created`)
}

func TestCreateAdmin_EmptyStdin(t *testing.T) {
	f := stubRunner(t)

	_, err := execute(t, "\n", "create-admin", "--name", "root", "--password-stdin")
	assert.EqualError(t, err, "empty password")
	assert.Empty(t, f.calls)
}

func TestCreateAdmin_RequiresName(t *testing.T) {
	stubRunner(t)

	_, err := execute(t, "pw\n", "create-admin", "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func stubPrompt(t *testing.T, answers ...string) {
	t.Helper()
	origRead, origFd := readPassword, stdinFd
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no input")
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
	stdinFd = func() int { return 0 }
	t.Cleanup(func() { readPassword, stdinFd = origRead, origFd })
}

func TestCreateAdmin_Prompt(t *testing.T) {
	f := stubRunner(t)
	stubPrompt(t, "pw", "pw")

	out, err := execute(t, "", "create-admin", "--name", "root")
	require.NoError(t, err)
	assert.Equal(t, "pw", f.password)
	assert.Contains(t, out, "Repeat password:")
}

func TestCreateAdmin_PromptMismatch(t *testing.T) {
	f := stubRunner(t)
	stubPrompt(t, "pw", "other")

	_, err := execute(t, "", "create-admin", "--name", "root")
	assert.EqualError(t, err, "passwords do not match")
	assert.Empty(t, f.calls)
}
