package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStore(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestAuditCleanTree(t *testing.T) {
	s, root := newSink(t)
	for _, d := range []string{"20240601", "20240602", "20240701"} {
		_, err := s.Write(record(d))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	report, err := Audit(root)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stores)
	assert.Equal(t, 3, report.Rows)
	assert.Empty(t, report.Duplicates)
	assert.Empty(t, report.Unreadable)
}

func TestAuditFindsDuplicates(t *testing.T) {
	root := t.TempDir()
	row := func(date string) string {
		return "2330,TSMC," + date + ",1,1,1,1,1,1,0,1\n"
	}
	writeStore(t, filepath.Join(root, "2330_TSMC_上市", "202406.csv"),
		bom+headerLine+"\n"+row("20240603")+row("20240604")+row("20240603")+row("20240603"))
	writeStore(t, filepath.Join(root, "1101_TCC_上市", "202406.csv"),
		row("20240603")+row("20240603"))
	writeStore(t, filepath.Join(root, "notes.txt"), "not a store")

	report, err := Audit(root)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stores)
	assert.Equal(t, 6, report.Rows)
	assert.Equal(t, []Duplicate{
		{Path: filepath.Join(root, "1101_TCC_上市", "202406.csv"), Date: "20240603", Count: 2},
		{Path: filepath.Join(root, "2330_TSMC_上市", "202406.csv"), Date: "20240603", Count: 3},
	}, report.Duplicates)
}

func TestAuditUnreadableStore(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "x_y_上櫃", "202406.csv")
	writeStore(t, bad, "a,\"unterminated\n")

	report, err := Audit(root)
	require.NoError(t, err)
	assert.Zero(t, report.Stores)
	assert.Contains(t, report.Unreadable, bad)
}

func TestAuditMissingRoot(t *testing.T) {
	_, err := Audit(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
