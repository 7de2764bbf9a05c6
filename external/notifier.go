// Package external implements the external module adapter (C8): outbound
// task-delivery notifications and inbound result ingestion for
// externally-registered modules.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modsentry/orchestrator/adapter/webhook"
	"github.com/modsentry/orchestrator/types"
)

// DefaultTimeout is the per-request timeout for task notifications.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the number of retry attempts on transient failure.
const DefaultRetries = 3

// TaskNotification is the minimal payload an external worker needs to
// correlate with its own queue poll (§4.8, §6).
type TaskNotification struct {
	TaskID      string           `json:"task_id"`
	FileHash    string           `json:"file_hash"`
	ChainTaskID *string          `json:"chain_task_id,omitempty"`
	Data        types.TaskPayload `json:"data"`
}

// NotifierConfig configures the Notifier.
type NotifierConfig struct {
	Timeout time.Duration
	Retries int
}

// Notifier POSTs best-effort task notifications to an external module's
// {base_url}/operations/process endpoint, reusing adapter/webhook's
// retry-with-backoff POST (4xx non-retriable, 5xx/network retriable)
// since each module has its own per-call base_url rather than one fixed
// at construction time.
type Notifier struct {
	cfg    NotifierConfig
	client *http.Client
}

// NewNotifier creates a Notifier.
func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = DefaultRetries
	}
	return &Notifier{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Notify best-effort delivers n to baseURL + "/operations/process". A
// notification failure is never fatal to the caller: the queue entry the
// executor already wrote is the source of truth (§4.8), so callers should
// log the error rather than fail the step on it.
func (n *Notifier) Notify(ctx context.Context, baseURL string, notification TaskNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("external: marshal task notification: %w", err)
	}
	if err := webhook.PostJSON(ctx, n.client, baseURL+"/operations/process", nil, body, n.cfg.Retries); err != nil {
		return fmt.Errorf("external: %w", err)
	}
	return nil
}

// Close releases the notifier's idle connections.
func (n *Notifier) Close() error {
	n.client.CloseIdleConnections()
	return nil
}
