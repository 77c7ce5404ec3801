// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// AnalyticsRecord caps one fire-and-forget analytics write.
const AnalyticsRecord = 2 * time.Second

// SettingsWrite caps one best-effort client settings write.
const SettingsWrite = time.Second

// SessionIdle is how long an unused client session stays in memory before
// it is dropped and later rehydrated from storage.
const SessionIdle = 30 * time.Minute
