package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csvchat/csvchat/internal/qa"
)

func newTestModel() Model {
	m := NewModel(ModelConfig{
		Tables:      []string{"cities", "rivers"},
		ShowSources: true,
	})
	resized, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return resized.(Model)
}

func TestModeToggle(t *testing.T) {
	m := newTestModel()
	if m.mode != qa.ModeGenerate {
		t.Fatalf("initial mode = %s, want generate", m.mode)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.mode != qa.ModeRetrieve {
		t.Errorf("mode after Tab = %s, want retrieve", m.mode)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	if m.mode != qa.ModeGenerate {
		t.Errorf("mode after second Tab = %s, want generate", m.mode)
	}
}

func TestTableCycle(t *testing.T) {
	m := newTestModel()
	if m.tableName != "cities" {
		t.Fatalf("initial table = %q, want cities", m.tableName)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = updated.(Model)
	if m.tableName != "rivers" {
		t.Errorf("table after Ctrl+T = %q, want rivers", m.tableName)
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = updated.(Model)
	if m.tableName != "cities" {
		t.Errorf("table after wrap = %q, want cities", m.tableName)
	}
}

func TestEnterIgnoredWhileEmpty(t *testing.T) {
	m := newTestModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if cmd != nil {
		t.Error("empty question produced a command")
	}
	if m.busy {
		t.Error("empty question set busy")
	}
}

func TestAnswerAppendsToTranscript(t *testing.T) {
	m := newTestModel()
	m.busy = true
	m.pending = "what is the population of Lyon?"

	updated, _ := m.Update(answerMsg{answer: &qa.Answer{
		Question: "what is the population of Lyon?",
		Text:     "513000",
		Mode:     qa.ModeGenerate,
		State:    qa.StateComposed,
	}})
	m = updated.(Model)

	if m.busy {
		t.Error("busy not cleared after answer")
	}
	if len(m.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(m.entries))
	}
	if !strings.Contains(m.viewport.View(), "513000") {
		t.Error("transcript does not show the answer")
	}
}

func TestErrorAppendsToTranscript(t *testing.T) {
	m := newTestModel()
	m.busy = true
	m.pending = "how many rows?"

	updated, _ := m.Update(answerErrMsg{err: errTest})
	m = updated.(Model)

	if m.busy {
		t.Error("busy not cleared after error")
	}
	if len(m.entries) != 1 || m.entries[0].Err == nil {
		t.Fatalf("error entry not recorded: %+v", m.entries)
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "model unavailable" }
