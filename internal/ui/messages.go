package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csvchat/csvchat/internal/qa"
)

// answerMsg carries a completed answer back into the update loop
type answerMsg struct {
	answer *qa.Answer
}

// answerErrMsg carries a failed ask back into the update loop
type answerErrMsg struct {
	err error
}

// askCmd runs one question against the engine off the UI goroutine
func askCmd(engine *qa.Engine, mode qa.Mode, question, tableName string) tea.Cmd {
	return func() tea.Msg {
		var (
			answer *qa.Answer
			err    error
		)

		if mode == qa.ModeRetrieve {
			answer, err = engine.AskRetrieve(context.Background(), question, tableName)
		} else {
			answer, err = engine.Ask(context.Background(), question, tableName)
		}

		if err != nil {
			return answerErrMsg{err: err}
		}
		return answerMsg{answer: answer}
	}
}
