package executor

import (
	"context"
	"time"

	"github.com/modsentry/orchestrator/types"
)

// Reconcile resumes each non-terminal ChainRun in runs (§8 scenario 6);
// terminal runs are skipped. The caller supplies the runs: the serve command
// does not call Reconcile, and its in-memory report store starts empty on
// every process start. For each run, it re-reads the durable
// task marker for the step the run was waiting on: if the result slot is
// already populated the executor consumes it immediately via a normal
// drive(); otherwise it re-awaits with a fresh deadline bounded by a grace
// window (grace = ReconciliationGraceMultiplier * step_timeout).
func (m *Manager) Reconcile(ctx context.Context, runs []types.ChainRun) {
	for _, run := range runs {
		run := run
		if run.State.Terminal() {
			continue
		}

		runCtx, cancel := context.WithCancel(context.Background())
		m.mu.Lock()
		m.runs[run.ChainRunID] = &runHandle{cancel: cancel}
		m.mu.Unlock()

		go m.resume(runCtx, &run)
	}
}

// resume re-awaits the in-flight step (if any) before falling back into the
// normal drive loop for the remaining steps.
func (m *Manager) resume(ctx context.Context, run *types.ChainRun) {
	defer m.finishRun(run.ChainRunID)

	steps := run.ChainSnapshot.Steps
	if run.Cursor < len(steps) {
		step := steps[run.Cursor]

		marker, ok, err := m.reports.GetTaskMarker(run.Fingerprint, step.ModuleID)
		if err == nil && ok {
			grace := m.reconciliationGrace(step)
			result, awaitErr := m.plane.AwaitResult(ctx, step.ModuleID, run.Fingerprint, marker.TaskID, grace)

			now := time.Now().UTC()
			outcome := types.StepOutcome{StepIndex: step.Order, ModuleID: step.ModuleID, TaskID: marker.TaskID, FinishedAt: &now}
			switch {
			case awaitErr != nil:
				outcome.Status = types.StepOutcomeTimedOut
				outcome.ErrorKind = string(types.KindTimeout)
				outcome.ErrorMessage = "lost on restart: " + awaitErr.Error()
			case result.Status == types.StatusError:
				outcome.Status = types.StepOutcomeFailed
				outcome.ErrorKind = string(types.KindWorkerError)
				outcome.ErrorMessage = result.ErrorMessage
			default:
				outcome.Status = types.StepOutcomeCompleted
				_ = m.reports.PutModuleResult(run.Fingerprint, *result)
			}
			_ = m.reports.DeleteTaskMarker(run.Fingerprint, step.ModuleID)

			run.StepOutcomes = append(run.StepOutcomes, outcome)
			_ = m.reports.PutChainRunState(*run)

			if outcome.Status == types.StepOutcomeCompleted {
				run.Cursor++
			} else if step.EffectiveFailurePolicy() == types.StepSoft {
				run.Cursor++
			} else {
				m.terminate(run, types.RunFailed, "lost task on restart for step "+step.ModuleID)
				return
			}
		}
	}

	m.drive(ctx, run)
}

func (m *Manager) reconciliationGrace(step types.ChainStep) time.Duration {
	timeout := m.cfg.DefaultStepTimeout
	if step.StepTimeoutOverride.Duration > 0 {
		timeout = step.StepTimeoutOverride.Duration
	}
	mult := m.cfg.ReconciliationGraceMultiplier
	if mult <= 0 {
		mult = 2
	}
	return time.Duration(mult) * timeout
}
