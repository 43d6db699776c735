package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineWalksAnalyzeOrder(t *testing.T) {
	m := NewMachine(analyzeStates)
	assert.Equal(t, StateConnecting, m.State())
	for _, s := range analyzeStates[1:] {
		prev, _, err := m.Advance(s)
		require.NoError(t, err)
		assert.NotEqual(t, s, prev)
	}
	assert.Equal(t, StateComplete, m.State())

	_, _, err := m.Advance(StateFailed)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestMachineRejectsSkipsAndRegressions(t *testing.T) {
	m := NewMachine(analyzeStates)
	_, _, err := m.Advance(StateDetailedExtraction)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, _, err = m.Advance(StateQuickProfile)
	require.NoError(t, err)
	_, _, err = m.Advance(StateConnecting)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, _, err = m.Advance(StateQuickProfile)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, StateQuickProfile, m.State())
}

func TestMachineFailIsTerminal(t *testing.T) {
	m := NewMachine(denialStates)
	_, _, err := m.Advance(StateQualitative)
	require.NoError(t, err)
	prev, _, err := m.Advance(StateFailed)
	require.NoError(t, err)
	assert.Equal(t, StateQualitative, prev)
	assert.Equal(t, StateFailed, m.State())

	_, _, err = m.Advance(StateQuantitative)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}
