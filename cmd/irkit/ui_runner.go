package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"irkit/internal/driver"
	"irkit/internal/ui"
)

type buildOutcome struct {
	result *driver.BuildResult
	err    error
}

func runBuildWithUI(ctx context.Context, out io.Writer, title string, opts driver.BuildOptions) (*driver.BuildResult, error) {
	targets := make([]string, 0, len(opts.Config.Targets))
	for _, t := range opts.Config.Targets {
		targets = append(targets, t.Name)
	}
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan buildOutcome, 1)

	go func() {
		opts.Progress = driver.ChannelSink{Ch: events}
		res, err := driver.Build(ctx, opts)
		outcomeCh <- buildOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, targets, events)
	program := tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(nil))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
