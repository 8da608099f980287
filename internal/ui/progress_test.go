package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"irkit/internal/driver"
)

func TestProgressModelTracksTargets(t *testing.T) {
	events := make(chan driver.Event)
	model := NewProgressModel("irkit build", []string{"mac", "gpu"}, events)

	for _, ev := range []driver.Event{
		{Target: "mac", Stage: driver.StageVerify, Status: driver.StatusWorking},
		{Target: "gpu", Status: driver.StatusError, Err: errors.New("disk full")},
		{Target: "unknown", Stage: driver.StageWrite, Status: driver.StatusWorking},
	} {
		model, _ = model.Update(eventMsg(ev))
	}
	view := model.View()
	if !strings.Contains(view, "verifying") || !strings.Contains(view, "mac") {
		t.Fatalf("running target missing from view:\n%s", view)
	}
	if !strings.Contains(view, "gpu: disk full") {
		t.Fatalf("error note missing from view:\n%s", view)
	}

	model, _ = model.Update(eventMsg(driver.Event{Target: "mac", Stage: driver.StageWrite, Status: driver.StatusDone, Elapsed: 1500 * time.Microsecond}))
	model, _ = model.Update(doneMsg{})
	view = model.View()
	if !strings.Contains(view, "done: irkit build") || !strings.Contains(view, "mac: 1.5 ms") {
		t.Fatalf("final view:\n%s", view)
	}
}

func TestProgressFromStage(t *testing.T) {
	prev := -1.0
	for _, stage := range []driver.Stage{"", driver.StageCache, driver.StageConstruct, driver.StageVerify, driver.StageWrite} {
		got := progressFromStage(stage)
		if got <= prev {
			t.Fatalf("progress must grow with the stage: %s = %v after %v", stage, got, prev)
		}
		prev = got
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("a-very-long-target-name", 10); got != "a-very-..." {
		t.Fatalf("truncate long = %q", got)
	}
}
