package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleetsync/internal/config"
)

func TestRelevant(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/state/fleet_definition.yaml", true},
		{"/state/pipelines/cheese-log-parser.json", true},
		{"/state/integration_fragments/system.json", true},
		{"/state/.fleet_definition.yaml.swp", false},
		{"/state/notes.txt", false},
		{"/state/pipelines/cheese.json.tmp", false},
	}
	for _, tc := range tests {
		if got := relevant(tc.path); got != tc.want {
			t.Errorf("relevant(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestScheduleSignalCollapsesBursts(t *testing.T) {
	w := &DefinitionWatcher{
		debounce: 20 * time.Millisecond,
		running:  true,
	}
	changes := make(chan struct{}, 1)

	// A burst of events within the debounce window keeps resetting the
	// timer; only one signal may come out.
	for i := 0; i < 5; i++ {
		w.scheduleSignal(changes)
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no change signal after the debounce window")
	}

	select {
	case <-changes:
		t.Error("burst produced more than one signal")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatcherSignalsOncePerSaveBurst(t *testing.T) {
	stateDir := t.TempDir()
	definition := filepath.Join(stateDir, config.DefinitionFileName)
	if err := os.WriteFile(definition, []byte("agent_policies: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w := NewDefinitionWatcher(stateDir, 50*time.Millisecond)
	changes := make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx, changes); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	defer w.Stop()

	// Two quick writes, as an editor save typically produces.
	if err := os.WriteFile(definition, []byte("agent_policies: {}\n# a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(definition, []byte("agent_policies: {}\n# b\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal after writing the definition")
	}

	select {
	case <-changes:
		t.Error("save burst produced more than one signal")
	case <-time.After(200 * time.Millisecond):
	}
}
