package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(m InputAreaModel, s string) InputAreaModel {
	m.Textarea.SetValue(s)
	return m
}

func submit(t *testing.T, m InputAreaModel) (InputAreaModel, string) {
	t.Helper()
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		return m, ""
	}
	msg, ok := cmd().(InputSubmitMsg)
	require.True(t, ok)
	return m, msg.Value
}

func TestInputSubmitTrims(t *testing.T) {
	m := NewInputArea()
	m, got := submit(t, typeText(m, "  what is in chapter 3?  "))
	assert.Equal(t, "what is in chapter 3?", got)
	assert.Empty(t, m.Value())

	_, got = submit(t, typeText(m, "   "))
	assert.Empty(t, got)
}

func TestInputHistoryRecall(t *testing.T) {
	m := NewInputArea()
	m, _ = submit(t, typeText(m, "first"))
	m, _ = submit(t, typeText(m, "second"))
	m, _ = submit(t, typeText(m, "second"))
	assert.Equal(t, []string{"first", "second"}, m.History())

	m = typeText(m, "draft")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, "second", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, "first", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, "first", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, "draft", m.Value())
}

func TestInputBusyPlaceholder(t *testing.T) {
	m := NewInputArea()
	m.SetBusy(true)
	assert.Equal(t, placeholderBusy, m.Textarea.Placeholder)
	m.SetBusy(false)
	assert.Equal(t, placeholderIdle, m.Textarea.Placeholder)
}

func TestParseSlashCommand(t *testing.T) {
	cmd, args, ok := ParseSlashCommand("  /Upload a.pdf b.txt ")
	require.True(t, ok)
	assert.Equal(t, "/upload", cmd)
	assert.Equal(t, []string{"a.pdf", "b.txt"}, args)

	_, _, ok = ParseSlashCommand("plain question")
	assert.False(t, ok)
}
