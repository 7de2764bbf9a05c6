package external

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modsentry/orchestrator/types"
)

func TestNotifier_DeliversToOperationsProcess(t *testing.T) {
	var received TaskNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/operations/process" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{Timeout: time.Second, Retries: 1})
	defer n.Close()

	err := n.Notify(t.Context(), srv.URL, TaskNotification{
		TaskID:   "task-1",
		FileHash: "fp1",
		Data:     types.TaskPayload{FolderPath: "extracted/fp1", FileType: types.FileTypeAPK},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if received.TaskID != "task-1" || received.FileHash != "fp1" {
		t.Fatalf("unexpected notification received: %+v", received)
	}
}

func TestNotifier_NonRetriableOn4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{Timeout: time.Second, Retries: 3})
	defer n.Close()

	err := n.Notify(t.Context(), srv.URL, TaskNotification{TaskID: "t", FileHash: "fp"})
	if err == nil {
		t.Fatal("expected error on 4xx")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected exactly one attempt for a non-retriable 4xx, got %d", got)
	}
}

func TestNotifier_RetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(NotifierConfig{Timeout: time.Second, Retries: 3})
	defer n.Close()

	if err := n.Notify(t.Context(), srv.URL, TaskNotification{TaskID: "t", FileHash: "fp"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", got)
	}
}
