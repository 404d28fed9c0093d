package sync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronizeRunsImportExportImportWhenPreImport(t *testing.T) {
	var calls []string
	s := &Synchronizer{
		PreImport: true,
		Import:    func() error { calls = append(calls, "import"); return nil },
		Export:    func() error { calls = append(calls, "export"); return nil },
	}
	require.NoError(t, s.Synchronize())
	assert.Equal(t, []string{"import", "export", "import"}, calls)
}

func TestSynchronizeSkipsPreImportWhenDisabled(t *testing.T) {
	var calls []string
	s := &Synchronizer{
		PreImport: false,
		Import:    func() error { calls = append(calls, "import"); return nil },
		Export:    func() error { calls = append(calls, "export"); return nil },
	}
	require.NoError(t, s.Synchronize())
	assert.Equal(t, []string{"export", "import"}, calls)
}

func TestSynchronizeStopsOnPreImportFailure(t *testing.T) {
	boom := errors.New("boom")
	exportCalled := false
	s := &Synchronizer{
		PreImport: true,
		Import:    func() error { return boom },
		Export:    func() error { exportCalled = true; return nil },
	}
	err := s.Synchronize()
	require.ErrorIs(t, err, boom)
	assert.False(t, exportCalled)
}

func TestSynchronizeStopsOnExportFailure(t *testing.T) {
	boom := errors.New("boom")
	importCount := 0
	s := &Synchronizer{
		PreImport: true,
		Import:    func() error { importCount++; return nil },
		Export:    func() error { return boom },
	}
	err := s.Synchronize()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, importCount)
}

func TestNewContentTrueWithNoDistDriver(t *testing.T) {
	s := &Synchronizer{}
	changed, err := s.NewContent()
	require.NoError(t, err)
	assert.True(t, changed)
}
