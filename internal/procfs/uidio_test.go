package procfs

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUidIoStats(t *testing.T, root string, lines ...string) {
	t.Helper()
	writeTestFile(t, filepath.Join(root, "uid_io/stats"), strings.Join(lines, "\n")+"\n")
}

func TestUidIoReader_Available(t *testing.T) {
	root := t.TempDir()
	r := NewUidIoReader(root)
	assert.False(t, r.Available())

	writeUidIoStats(t, root, "0 0 0 0 0 0 0 0 0 0 0")
	assert.True(t, r.Available())
}

func TestUidIoReader_Collect(t *testing.T) {
	root := t.TempDir()
	//               uid fg_rchar fg_wchar fg_rbytes fg_wbytes bg_rchar bg_wchar bg_rbytes bg_wbytes fg_fsync bg_fsync
	writeUidIoStats(t, root,
		"0 900 800 1000 2000 90 80 100 200 5 1",
		"1000 0 0 4096 0 0 0 0 8192 2 3",
	)

	r := NewUidIoReader(root)
	usage, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, usage, 2)

	t.Run("first_collect_reports_boot_accumulated_counters", func(t *testing.T) {
		u := usage[0]
		assert.Equal(t, uint64(1000), u.ReadBytes[StateForeground])
		assert.Equal(t, uint64(2000), u.WriteBytes[StateForeground])
		assert.Equal(t, uint64(100), u.ReadBytes[StateBackground])
		assert.Equal(t, uint64(200), u.WriteBytes[StateBackground])
		assert.Equal(t, uint64(5), u.Fsync[StateForeground])
		assert.Equal(t, uint64(1), u.Fsync[StateBackground])
		assert.Equal(t, uint64(3300), u.TotalBytes())
	})

	t.Run("second_collect_reports_deltas", func(t *testing.T) {
		writeUidIoStats(t, root,
			"0 900 800 1500 2100 90 80 100 200 7 1",
			"1000 0 0 4096 0 0 0 0 8192 2 3",
		)
		usage, err := r.Collect()
		require.NoError(t, err)

		u := usage[0]
		assert.Equal(t, uint64(500), u.ReadBytes[StateForeground])
		assert.Equal(t, uint64(100), u.WriteBytes[StateForeground])
		assert.Equal(t, uint64(0), u.ReadBytes[StateBackground])
		assert.Equal(t, uint64(2), u.Fsync[StateForeground])

		assert.Equal(t, uint64(0), usage[1000].TotalBytes())
	})

	t.Run("counter_reset_treats_current_value_as_delta", func(t *testing.T) {
		writeUidIoStats(t, root,
			"0 900 800 64 0 90 80 100 200 7 1",
			"1000 0 0 4096 0 0 0 0 8192 2 3",
		)
		usage, err := r.Collect()
		require.NoError(t, err)
		assert.Equal(t, uint64(64), usage[0].ReadBytes[StateForeground])
	})
}

func TestUidIoReader_NewUidAppears(t *testing.T) {
	root := t.TempDir()
	writeUidIoStats(t, root, "0 0 0 10 0 0 0 0 0 0 0")

	r := NewUidIoReader(root)
	_, err := r.Collect()
	require.NoError(t, err)

	writeUidIoStats(t, root,
		"0 0 0 10 0 0 0 0 0 0 0",
		"1001 0 0 500 0 0 0 0 0 1 0",
	)
	usage, err := r.Collect()
	require.NoError(t, err)
	// A UID seen for the first time reports its full counters.
	assert.Equal(t, uint64(500), usage[1001].ReadBytes[StateForeground])
	assert.Equal(t, uint64(0), usage[0].TotalBytes())
}

func TestUidIoReader_MalformedLinesSkipped(t *testing.T) {
	root := t.TempDir()
	writeUidIoStats(t, root,
		"not a stats line",
		"4294967296 0 0 1 0 0 0 0 0 0 0", // uid overflows uint32
		"1000 0 0 4096 0 0 0 0 0 1 0",
		"2000 1 2 3", // too few fields
	)

	r := NewUidIoReader(root)
	usage, err := r.Collect()
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Contains(t, usage, uint32(1000))
}

func TestUidIoReader_Errors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		r := NewUidIoReader(t.TempDir())
		_, err := r.Collect()
		require.Error(t, err)
	})

	t.Run("no_parseable_entries", func(t *testing.T) {
		root := t.TempDir()
		writeUidIoStats(t, root, "garbage")
		r := NewUidIoReader(root)
		_, err := r.Collect()
		require.ErrorIs(t, err, ErrEmptyStats)
	})
}
