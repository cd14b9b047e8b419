package convo

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempStreamExportDir(t *testing.T) (string, error) {
	t.Helper()
	return t.TempDir(), nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestExportStreamData_UnknownIndex(t *testing.T) {
	tr := NewTracker(testConfig())
	dir := t.TempDir()
	err := tr.ExportStreamRaw(99, dir+"/nope.raw")
	require.Error(t, err)
}
