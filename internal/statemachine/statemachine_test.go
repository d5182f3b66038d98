package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	n int
}

func countingState(c *counter, emit func(string, Event)) StateFn[counter] {
	c.n++
	if emit != nil {
		emit("counting", StateEntered)
	}
	if c.n >= 3 {
		return nil
	}
	return countingState
}

func TestMachine_DispatchAdvancesUntilNilState(t *testing.T) {
	c := &counter{}
	m := New(c, countingState)

	var entered []string
	cb := func(name string, ev Event) {
		if ev == StateEntered {
			entered = append(entered, name)
		}
	}

	require.False(t, m.Done())
	m.Dispatch(cb)
	assert.False(t, m.Done())
	m.Dispatch(cb)
	assert.False(t, m.Done())
	m.Dispatch(cb)

	assert.True(t, m.Done(), "machine halts once a state returns nil")
	assert.Equal(t, 3, c.n)
	assert.Equal(t, []string{"counting", "counting", "counting"}, entered)
}

func TestMachine_DispatchOnDoneMachineIsNoop(t *testing.T) {
	c := &counter{n: 3}
	m := New(c, nil)
	require.True(t, m.Done())

	m.Dispatch(nil)
	assert.Equal(t, 3, c.n, "dispatching a halted machine must not run any state")
}

func TestMachine_SetReplacesStateWithoutCallback(t *testing.T) {
	c := &counter{}
	m := New(c, countingState)

	called := false
	m.Set(func(c *counter, emit func(string, Event)) StateFn[counter] {
		called = true
		return nil
	})
	assert.False(t, called, "Set alone must not run the new state until Dispatch is called")

	m.Dispatch(nil)
	assert.True(t, called)
	assert.True(t, m.Done())
}

func TestMachine_CurrentReflectsLatestState(t *testing.T) {
	c := &counter{}
	m := New(c, countingState)
	assert.NotNil(t, m.Current())

	for !m.Done() {
		m.Dispatch(nil)
	}
	assert.Nil(t, m.Current())
}
