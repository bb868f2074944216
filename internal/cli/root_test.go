package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "roster", cmd.Use)
	assert.Contains(t, cmd.Long, "roster login")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"console", "login", "logout", "whoami", "dashboard",
		"list", "get", "create", "delete",
		"upload", "attend", "schedule", "logs", "mock-server",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("api-url"))
}

func TestLoginCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	loginCmd, _, err := cmd.Find([]string{"login"})
	require.NoError(t, err)

	userFlag := loginCmd.Flags().Lookup("username")
	require.NotNil(t, userFlag)
	assert.Equal(t, "u", userFlag.Shorthand)

	passFlag := loginCmd.Flags().Lookup("password")
	require.NotNil(t, passFlag)
	assert.Equal(t, "p", passFlag.Shorthand)
}

func TestListCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	listCmd, _, err := cmd.Find([]string{"list"})
	require.NoError(t, err)

	classFlag := listCmd.Flags().Lookup("class")
	require.NotNil(t, classFlag)
	assert.Equal(t, "0", classFlag.DefValue)
	require.NotNil(t, listCmd.Flags().Lookup("where"))
}

func TestScheduleApplyCommand(t *testing.T) {
	cmd := NewRootCommand()
	applyCmd, _, err := cmd.Find([]string{"schedule", "apply"})
	require.NoError(t, err)
	assert.Equal(t, "apply", applyCmd.Name())

	fileFlag := applyCmd.Flags().Lookup("file")
	require.NotNil(t, fileFlag)
	assert.Equal(t, "f", fileFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Main(testContext(t), []string{"--format", "xml", "logs"}, &stdout, &stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), `invalid format "xml"`)
}

func TestLookupResource(t *testing.T) {
	for _, name := range []string{"classes", "class", "Quiz", " materials "} {
		_, err := lookupResource(name)
		assert.NoError(t, err, name)
	}

	_, err := lookupResource("grades")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "assignments, attendance, classes")
}

func TestParseMark(t *testing.T) {
	mark, err := parseMark("4=late")
	require.NoError(t, err)
	assert.Equal(t, int64(4), mark.StudentID)
	assert.Equal(t, "LATE", mark.Status)

	for _, bad := range []string{"4", "x=PRESENT", "-1=ABSENT"} {
		_, err := parseMark(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodePayload(t *testing.T) {
	var in struct {
		SubjectName string `json:"subjectName"`
		Credits     int    `json:"credits"`
	}
	require.NoError(t, decodePayload([]byte("subjectName: Vật lý\ncredits: 3\n"), &in))
	assert.Equal(t, "Vật lý", in.SubjectName)
	assert.Equal(t, 3, in.Credits)

	require.NoError(t, decodePayload([]byte(`{"subjectName":"Sinh học","credits":2}`), &in))
	assert.Equal(t, "Sinh học", in.SubjectName)

	err := decodePayload([]byte(`{"subjectNam":"typo"}`), &in)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUsageErrorsExitTwo(t *testing.T) {
	tests := [][]string{
		{"no-such-command"},
		{"list"},
		{"attend", "4=PRESENT"},
		{"list", "classes", "--bogus"},
	}
	for _, args := range tests {
		var stdout, stderr bytes.Buffer
		code := Main(testContext(t), args, &stdout, &stderr)
		assert.Equal(t, ExitCommandError, code, "%v", args)
		assert.NotEmpty(t, stderr.String(), "%v", args)
	}
}

// testContext stands in for testing.T.Context, which needs Go 1.24: the
// context is cancelled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
