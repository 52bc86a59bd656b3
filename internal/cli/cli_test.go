package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
rules:
  - name: drop-bots
    when: [['sender.is_bot == true']]
    action: stop
  - name: greet
    when: [['update_type == "bot_started"']]
    action: emit
    message: hello ${user.name}
  - name: crash
    when: [['update_type == "crash"']]
    action: fail
`

const testEvents = `{"update_type":"bot_started","user":{"name":"ann"}}
{"update_type":"message_created","sender":{"is_bot":true}}
{"update_type":"crash"}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	rules := writeFile(t, "rules.yaml", testRules)

	_, _, err := execute(t, "", "validate", "--rules", rules, "--format", "xml")

	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestGetExitCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":          {nil, ExitSuccess},
		"plain error":  {errors.New("boom"), ExitFailure},
		"exit error":   {NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		"wrapped exit": {fmt.Errorf("run: %w", WrapExitError(ExitCommandError, "open input", errors.New("gone"))), ExitCommandError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}

	assert.EqualError(t, WrapExitError(ExitFailure, "interrupted", context.Canceled), "interrupted: context canceled")
}

func TestRun(t *testing.T) {
	rules := writeFile(t, "rules.yaml", testRules)

	t.Run("text output from stdin", func(t *testing.T) {
		out, _, err := execute(t, testEvents, "run", "--rules", rules)

		require.Error(t, err, "the crash event fails")
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, "greet emit: hello ann\n"+
			"drop-bots stop\n"+
			"processed 3 event(s), 1 failed\n", out)
	})

	t.Run("json output from file", func(t *testing.T) {
		input := writeFile(t, "events.ndjson", testEvents[:strings.Index(testEvents, "\n")+1])

		out, _, err := execute(t, "", "run", "--rules", rules, "--input", input, "--format", "json")

		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)

		var emission map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &emission))
		assert.Equal(t, "greet", emission["rule"])
		assert.Equal(t, "hello ann", emission["message"])
		assert.NotEmpty(t, emission["dispatch_id"])

		assert.JSONEq(t, `{"events":1,"failed":0}`, lines[1])
	})

	t.Run("undecodable events are counted", func(t *testing.T) {
		out, _, err := execute(t, "not json\n", "run", "--rules", rules)

		require.Error(t, err)
		assert.Contains(t, out, "processed 1 event(s), 1 failed")
	})

	t.Run("oversized event is counted and the run ends", func(t *testing.T) {
		huge := `{"pad":"` + strings.Repeat("x", 2<<20) + `"}`
		stdin := huge + "\n" + `{"update_type":"bot_started","user":{"name":"bo"}}` + "\n"

		out, stderr, err := execute(t, stdin, "run", "--rules", rules)

		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Equal(t, "greet emit: hello bo\n"+
			"processed 2 event(s), 1 failed\n", out)
		assert.Contains(t, stderr, "event exceeds 1 MiB")
	})

	t.Run("interrupted run stops reading", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		out, _, err := executeContext(t, ctx, testEvents, "run", "--rules", rules)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "interrupted")
		assert.Empty(t, out)
	})

	t.Run("failures are logged", func(t *testing.T) {
		t.Setenv("EVPROC_LOG_FORMAT", "json")

		_, stderr, err := execute(t, `{"update_type":"crash"}`, "run", "--rules", rules)

		require.Error(t, err)
		assert.Contains(t, stderr, `"msg":"handler failed"`)
		assert.Contains(t, stderr, `"handler":"crash"`)
	})

	t.Run("missing rules file", func(t *testing.T) {
		_, _, err := execute(t, "", "run", "--rules", filepath.Join(t.TempDir(), "none.yaml"))

		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("bad config", func(t *testing.T) {
		t.Setenv("EVPROC_TIMEOUT", "-1s")

		_, _, err := execute(t, "", "run", "--rules", rules)

		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "load config")
	})

	t.Run("rules flag is required", func(t *testing.T) {
		_, _, err := execute(t, "", "run")

		require.Error(t, err)
	})
}

func TestRun_LogFile(t *testing.T) {
	rules := writeFile(t, "rules.yaml", testRules)
	logFile := filepath.Join(t.TempDir(), "evproc.log")
	t.Setenv("EVPROC_LOG_FILE", logFile)

	_, stderr, err := execute(t, `{"update_type":"crash"}`, "run", "--rules", rules)

	require.Error(t, err)
	assert.Empty(t, stderr)
	data, readErr := os.ReadFile(logFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "handler failed")
}

func TestValidate(t *testing.T) {
	t.Run("valid rules", func(t *testing.T) {
		rules := writeFile(t, "rules.yaml", testRules)

		out, _, err := execute(t, "", "validate", "--rules", rules)

		require.NoError(t, err)
		assert.Contains(t, out, "✓ 3 rule(s) valid")
	})

	t.Run("valid rules as json", func(t *testing.T) {
		rules := writeFile(t, "rules.yaml", testRules)

		out, _, err := execute(t, "", "validate", "--rules", rules, "--format", "json")

		require.NoError(t, err)
		var result ValidationResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.True(t, result.Valid)
		assert.Equal(t, []string{"drop-bots", "greet", "crash"}, result.Handlers)
	})

	t.Run("every problem is listed", func(t *testing.T) {
		rules := writeFile(t, "rules.yaml", `
rules:
  - name: a
    action: shout
    always: true
  - name: b
    action: emit
  - name: c
    always: true
    when: [['true']]
    action: emit
`)

		out, _, err := execute(t, "", "validate", "--rules", rules, "--format", "json")

		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		var result ValidationResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 3)
		assert.Contains(t, result.Errors[0], "unknown action")
		assert.Contains(t, result.Errors[1], `"b"`)
		assert.Contains(t, result.Errors[2], `"c"`)
	})

	t.Run("unreadable file", func(t *testing.T) {
		out, _, err := execute(t, "", "validate", "--rules", filepath.Join(t.TempDir(), "none.yaml"))

		require.Error(t, err)
		assert.Contains(t, out, "✗ Validation failed")
		assert.Contains(t, out, "read rules file")
	})
}
