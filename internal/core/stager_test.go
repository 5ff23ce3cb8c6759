package core

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStager(t *testing.T) *Stager {
	t.Helper()
	s, err := NewStager(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStageWritesCompleteFile(t *testing.T) {
	s := newTestStager(t)

	payload := []byte("%PDF-1.7 test document")
	doc, err := s.Stage(payload)
	require.NoError(t, err)

	// The file is fully written and closed before the handle is returned.
	data, err := os.ReadFile(doc.Path())
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, int64(len(payload)), doc.Size())
}

func TestStageUniquePaths(t *testing.T) {
	s := newTestStager(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		doc, err := s.Stage([]byte("x"))
		require.NoError(t, err)
		assert.False(t, seen[doc.Path()], "duplicate staged path %s", doc.Path())
		seen[doc.Path()] = true
	}
}

func TestReleaseDeletesExactlyOnce(t *testing.T) {
	s := newTestStager(t)

	doc, err := s.Stage([]byte("payload"))
	require.NoError(t, err)

	doc.Release()
	_, err = os.Stat(doc.Path())
	assert.True(t, os.IsNotExist(err))

	// Releasing again is a no-op.
	doc.Release()
}

func TestStagerCloseRemovesDirectory(t *testing.T) {
	s, err := NewStager(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	doc, err := s.Stage([]byte("left behind"))
	require.NoError(t, err)

	require.NoError(t, s.Close())

	_, err = os.Stat(doc.Path())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.Dir())
	assert.True(t, os.IsNotExist(err))
}
