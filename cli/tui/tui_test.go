package tui

import (
	"testing"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"inspect_chain_run", true},
		{"inspect_module", true},

		{"list_modules", false},
		{"list_chains", false},
		{"version", false},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			got := IsTUISupported(tt.viewType)
			if got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	views := SupportedTUIViews()

	if len(views) != 2 {
		t.Errorf("SupportedTUIViews() returned %d views, expected 2", len(views))
	}

	for _, v := range views {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews() returned %q but IsTUISupported returns false", v)
		}
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	err := Run("list_modules", nil)
	if err == nil {
		t.Error("Expected error for unsupported view type")
	}
}
