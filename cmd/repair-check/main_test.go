package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	var b strings.Builder
	ok := check(&b, "fenced", "Here you go:\n```json\n{\"a\": 1}\n```", true)

	assert.True(t, ok)
	assert.Contains(t, b.String(), "=== fenced")
	assert.Contains(t, b.String(), `{"a":1}`)
	assert.Contains(t, b.String(), "balanced: false")
}

func TestCheck_Unrecoverable(t *testing.T) {
	var b strings.Builder
	ok := check(&b, "prose", "I cannot help with that.", false)

	assert.False(t, ok)
	assert.Contains(t, b.String(), "failure:")
}

func TestRootCmd_StdinCompact(t *testing.T) {
	var out strings.Builder
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(`{a: 1, 'b': True,}`))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--compact"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "=== -")
	assert.Contains(t, out.String(), `{"a":1,"b":true}`)
}

func TestRootCmd_FilesReportFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(good, []byte(`{"ok": true}`), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("no json here"), 0o600))

	var out, errOut strings.Builder
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{good, bad, filepath.Join(dir, "missing.txt")})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "2 of 3 inputs not recovered")
	assert.Contains(t, out.String(), "=== "+good)
	assert.Contains(t, out.String(), "=== "+bad)
	assert.Contains(t, errOut.String(), "missing.txt")
}
