// Package logger provides a small, thread-safe leveled logger.
//
// Each entry carries a timestamp, a level, an optional source label
// (usually the id of a simulated user session) and the message:
//
//	[2026-10-19 12:00:00.000] [INFO] [3f2a9c1e] Authentication successful for user1@example.com
//
// # Basic Usage
//
//	logger.Info("", "Spawning %d users", n)
//	logger.Warn(sessionID, "Unauthorized - token may be invalid")
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug(sessionID, "GET %s -> %d", url, status)
//
// # Log Levels
//
// Messages below the configured level are dropped. ParseLevel turns the
// strings used in config files and flags ("debug", "info", "warn",
// "error") into a Level.
package logger
