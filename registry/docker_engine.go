package registry

import (
	"github.com/modsentry/orchestrator/internal/docker"
)

// The assertion below checks at compile time that internal/docker.Client
// satisfies ContainerEngine structurally; this file exists only to make
// that binding explicit.
var _ ContainerEngine = (*docker.Client)(nil)
