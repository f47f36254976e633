package main

import (
	"context"

	"wordloop/internal/types"
)

// startLoop starts the word loop. Transitions are serialized with stopLoop so
// the initial word of a new run is never overtaken by an earlier loopStopped.
func (app *App) startLoop() (string, error) {
	app.controlMu.Lock()
	defer app.controlMu.Unlock()

	word, err := app.Loop.Start(app.onTick)
	if err != nil {
		return "", err
	}
	app.Metrics.LoopRunning.Set(1)
	return word, nil
}

// stopLoop stops the word loop and broadcasts loopStopped before another
// transition can begin.
func (app *App) stopLoop(ctx context.Context) error {
	app.controlMu.Lock()
	defer app.controlMu.Unlock()

	if err := app.Loop.Stop(); err != nil {
		return err
	}
	app.Metrics.LoopRunning.Set(0)
	app.Broadcaster.Broadcast(ctx, types.LoopStopped())
	return nil
}

// onTick runs on the loop goroutine for every word, including the initial one.
// It returns once the broadcast has settled, so ticks never overlap.
func (app *App) onTick(word string) {
	app.Metrics.TicksTotal.Inc()
	logInfo("Current word: %s", word)
	app.Broadcaster.Broadcast(app.connCtx, types.WordUpdate(word))
}

// catchUp supplies the current word to a newly admitted client while the loop runs.
func (app *App) catchUp() (types.Message, bool) {
	if !app.Config.CatchUp {
		return types.Message{}, false
	}
	state := app.Loop.State()
	if !state.Running {
		return types.Message{}, false
	}
	return types.WordUpdate(state.CurrentWord), true
}
