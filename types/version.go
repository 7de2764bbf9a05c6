package types

// Version is the canonical project version. The CLI, HTTP surface, and
// queue-plane wire contract all share this version.
const Version = "0.1.0"
