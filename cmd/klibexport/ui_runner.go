package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"klibexport/internal/buildpipeline"
	"klibexport/internal/driver"
	"klibexport/internal/ui"
)

type exportOutcome struct {
	result *driver.Result
	err    error
}

func runExportWithUI(ctx context.Context, title string, modules []string, req driver.Request) (*driver.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan exportOutcome, 1)

	go func() {
		req.Progress = buildpipeline.ChannelSink{Ch: events}
		res, err := driver.Run(ctx, req)
		outcomeCh <- exportOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, modules, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// UI мог выйти раньше (Ctrl+C): останавливаем драйвер и дочитываем события
	cancel()
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
