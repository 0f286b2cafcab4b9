package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadThoughtContext_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.json")
	content := `{
		"agent_id": "agent-1",
		"goal": "respond to the user",
		"events": [
			{"type": "communication.message", "data": {"message": "What's up?"}}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tc, err := readThoughtContext([]string{path})
	require.NoError(t, err)

	assert.Equal(t, "agent-1", tc.AgentID)
	assert.Equal(t, "respond to the user", tc.Goal)
	require.Len(t, tc.Events, 1)
	assert.Equal(t, "What's up?", tc.Events[0].Message())
}

func TestReadThoughtContext_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := readThoughtContext([]string{path})
	assert.Error(t, err)
}

func TestReadThoughtContext_MissingFile(t *testing.T) {
	_, err := readThoughtContext([]string{filepath.Join(t.TempDir(), "absent.json")})
	assert.Error(t, err)
}
