package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/modsentry/orchestrator/adapter"
	"github.com/modsentry/orchestrator/external"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/types"
)

// drive runs one ChainRun to completion (or cancellation), persisting its
// state to the report store after every step boundary. Enqueue and await
// receive ctx, and the loop checks ctx.Done() before each step; report-store
// writes are in-memory calls that take no context.
func (m *Manager) drive(ctx context.Context, run *types.ChainRun) {
	defer m.finishRun(run.ChainRunID)

	logger := m.logger.With(types.LogContext{ChainRunID: run.ChainRunID, Fingerprint: run.Fingerprint})

	artifact, err := m.artifacts.GetArtifact(ctx, run.Fingerprint)
	if err != nil {
		m.terminate(run, types.RunFailed, fmt.Sprintf("load artifact: %v", err))
		return
	}

	steps := run.ChainSnapshot.Steps
	for run.Cursor < len(steps) {
		select {
		case <-ctx.Done():
			m.terminate(run, types.RunCancelled, "cancelled")
			return
		default:
		}

		step := steps[run.Cursor]
		outcome := m.runStep(ctx, run, step, artifact)
		run.StepOutcomes = append(run.StepOutcomes, outcome)

		if err := m.reports.PutChainRunState(*run); err != nil {
			logger.Error("persist chain run state failed", map[string]any{"error": err.Error()})
		}

		switch outcome.Status {
		case types.StepOutcomeCompleted:
			run.Cursor++
			continue
		case types.StepOutcomeCancelled:
			m.terminate(run, types.RunCancelled, "cancelled during step "+fmt.Sprint(step.Order))
			return
		default: // failed or timed_out
			if step.EffectiveFailurePolicy() == types.StepSoft {
				run.Cursor++
				continue
			}
			m.terminate(run, types.RunFailed, fmt.Sprintf("step %d (module %s): %s", step.Order, step.ModuleID, outcome.Status))
			return
		}
	}

	m.terminate(run, types.RunCompleted, "")
}

// runStep enqueues one step's task, awaits its result (subject to
// cancellation and the step's timeout), and returns its StepOutcome. The
// at-most-one-task invariant (P1) is enforced by reserveOutstanding before
// enqueue and released once the task reaches a final state.
func (m *Manager) runStep(ctx context.Context, run *types.ChainRun, step types.ChainStep, artifact *types.Artifact) types.StepOutcome {
	now := time.Now().UTC()
	outcome := types.StepOutcome{StepIndex: step.Order, ModuleID: step.ModuleID, StartedAt: &now}

	if !m.reserveOutstanding(run.Fingerprint, step.ModuleID, "") {
		outcome.Status = types.StepOutcomeFailed
		outcome.ErrorKind = string(types.KindIllegalState)
		outcome.ErrorMessage = "a task is already outstanding for this module"
		m.finishOutcome(&outcome)
		return outcome
	}
	defer m.releaseOutstanding(run.Fingerprint, step.ModuleID)

	taskID := uuid.New().String()
	outcome.TaskID = taskID

	task := &types.Task{
		TaskID:      taskID,
		FileHash:    run.Fingerprint,
		ModuleID:    step.ModuleID,
		ChainTaskID: &run.ChainRunID,
		StepIndex:   &step.Order,
		Data: types.TaskPayload{
			FolderPath: artifact.ExtractedRoot,
			FileType:   artifact.DetectedType,
			Parameters: step.Parameters,
		},
		EnqueuedAt: time.Now().UTC(),
		State:      types.TaskQueued,
	}

	timeout := m.cfg.DefaultStepTimeout
	if step.StepTimeoutOverride.Duration > 0 {
		timeout = step.StepTimeoutOverride.Duration
	}
	deadline := time.Now().UTC().Add(timeout)

	if err := m.reports.PutTaskMarker(taskMarkerFor(run, step, task, deadline)); err != nil {
		m.logger.Error("persist task marker failed", map[string]any{"task_id": taskID, "error": err.Error()})
	}

	if err := m.plane.Enqueue(ctx, task); err != nil {
		outcome.Status = types.StepOutcomeFailed
		outcome.ErrorKind = string(types.KindUnavailable)
		outcome.ErrorMessage = err.Error()
		m.finishOutcome(&outcome)
		_ = m.reports.DeleteTaskMarker(run.Fingerprint, step.ModuleID)
		return outcome
	}
	m.metrics.IncTaskEnqueued()
	go m.notifyExternal(run, step, task)

	result, err := m.plane.AwaitResult(ctx, step.ModuleID, run.Fingerprint, taskID, timeout)
	_ = m.reports.DeleteTaskMarker(run.Fingerprint, step.ModuleID)

	switch {
	case ctx.Err() != nil:
		outcome.Status = types.StepOutcomeCancelled
	case types.KindOf(err) == types.KindTimeout:
		outcome.Status = types.StepOutcomeTimedOut
		outcome.ErrorKind = string(types.KindTimeout)
		outcome.ErrorMessage = err.Error()
		m.metrics.IncTaskTimedOut()
	case err != nil:
		outcome.Status = types.StepOutcomeFailed
		outcome.ErrorKind = string(types.KindInternal)
		outcome.ErrorMessage = err.Error()
		m.metrics.IncTaskFailed()
	case result.Status == types.StatusError:
		outcome.Status = types.StepOutcomeFailed
		outcome.ErrorKind = string(types.KindWorkerError)
		outcome.ErrorMessage = result.ErrorMessage
		m.metrics.IncTaskFailed()
	default:
		outcome.Status = types.StepOutcomeCompleted
		m.metrics.IncTaskCompleted()
		if perr := m.reports.PutModuleResult(run.Fingerprint, *result); perr != nil {
			m.logger.Error("persist module result failed", map[string]any{"task_id": taskID, "error": perr.Error()})
		}
	}

	m.finishOutcome(&outcome)
	return outcome
}

func (m *Manager) finishOutcome(outcome *types.StepOutcome) {
	now := time.Now().UTC()
	outcome.FinishedAt = &now
}

func (m *Manager) terminate(run *types.ChainRun, state types.ChainRunState, reason string) {
	now := time.Now().UTC()
	run.State = state
	run.FinishedAt = &now
	run.FailureReason = reason
	m.metrics.IncChainRunTerminal(string(state))
	if err := m.reports.PutChainRunState(*run); err != nil {
		m.logger.Error("persist terminal chain run state failed", map[string]any{"chain_run_id": run.ChainRunID, "error": err.Error()})
	}
	m.notifyCompletion(run)
}

func (m *Manager) notifyCompletion(run *types.ChainRun) {
	if m.Notifier == nil {
		return
	}
	durationMs := int64(0)
	if run.FinishedAt != nil {
		durationMs = run.FinishedAt.Sub(run.StartedAt).Milliseconds()
	}
	event := &adapter.ChainRunCompletedEvent{
		ChainRunID:  run.ChainRunID,
		EventType:   "chain_run_completed",
		Fingerprint: run.Fingerprint,
		ChainName:   run.ChainSnapshot.Name,
		Outcome:     string(run.State),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		DurationMs:  durationMs,
		StepCount:   len(run.StepOutcomes),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Notifier.Publish(ctx, event); err != nil {
		m.logger.Error("publish chain run completed event failed", map[string]any{"chain_run_id": run.ChainRunID, "error": err.Error()})
	}
}

// notifyExternal POSTs a task notification to step's module if it is
// externally hosted (§4.8). Runs off the step's critical path: the queue
// entry runStep already wrote is the source of truth, so a slow or failing
// notification never delays or fails the step.
func (m *Manager) notifyExternal(run *types.ChainRun, step types.ChainStep, task *types.Task) {
	if m.ExternalNotifier == nil {
		return
	}
	mod, err := m.registry.Get(context.Background(), step.ModuleID)
	if err != nil || mod.Kind != types.ModuleKindExternal {
		return
	}

	notification := external.TaskNotification{
		TaskID:      task.TaskID,
		FileHash:    run.Fingerprint,
		ChainTaskID: &run.ChainRunID,
		Data:        task.Data,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.ExternalNotifier.Notify(ctx, mod.BaseURL, notification); err != nil {
		m.logger.Error("external task notification failed", map[string]any{
			"task_id": task.TaskID, "module_id": step.ModuleID, "error": err.Error(),
		})
	}
}

func taskMarkerFor(run *types.ChainRun, step types.ChainStep, task *types.Task, deadline time.Time) report.TaskMarker {
	return report.TaskMarker{
		Fingerprint: run.Fingerprint,
		ModuleID:    step.ModuleID,
		TaskID:      task.TaskID,
		ChainRunID:  run.ChainRunID,
		StepIndex:   step.Order,
		EnqueuedAt:  task.EnqueuedAt,
		Deadline:    deadline,
	}
}
