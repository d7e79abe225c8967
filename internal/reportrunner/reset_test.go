package reportrunner

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeHistoryFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"report":"inventory"}`+"\n"), 0o644))
	return path
}

func TestResetHistoryDryRunKeepsFile(t *testing.T) {
	path := writeHistoryFile(t)

	var out bytes.Buffer
	require.NoError(t, resetHistory(strings.NewReader(""), &out, path, resetOptions{dryRun: true}))
	require.Contains(t, out.String(), "Dry run: would remove history")
	require.FileExists(t, path)
}

func TestResetHistoryConfirm(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		removed bool
	}{
		{name: "enter accepts", answer: "\n", removed: true},
		{name: "yes", answer: "yes\n", removed: true},
		{name: "no", answer: "n\n", removed: false},
		{name: "closed stdin", answer: "", removed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeHistoryFile(t)

			var out bytes.Buffer
			require.NoError(t, resetHistory(strings.NewReader(tt.answer), &out, path, resetOptions{}))
			if tt.removed {
				require.NoFileExists(t, path)
				require.Contains(t, out.String(), "Removed history")
				return
			}
			require.FileExists(t, path)
			require.Contains(t, out.String(), "Reset cancelled.")
		})
	}
}

func TestResetHistoryMissingFile(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, resetHistory(nil, &out, path, resetOptions{yes: true}))
	require.Contains(t, out.String(), "History already missing")

	require.Error(t, resetHistory(nil, &out, " ", resetOptions{yes: true}))
}
