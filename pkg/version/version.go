package version

// Version is the release string reported by the binary and /health.
const Version = "v0.1.0"
