// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Connecting", zap.String("user_id", userID))
//	logger.Error("Dial failed", zap.Error(err))
package logging
