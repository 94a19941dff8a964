// Package logger provides structured logging utilities built on Go's standard slog package:
// a small factory with environment presets and a set of attribute helpers so every
// component logs the same keys.
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/tieredsession/core/logger"
//
//	log := logger.New(
//		logger.WithProduction("sessionctl"),
//		logger.WithLevel(slog.LevelWarn),
//	)
//
//	log.Info("registry ready",
//		logger.Component("session"),
//		logger.Event("startup"),
//	)
//
// # Environment Presets
//
//	// Development: text format, debug level
//	logger.New(logger.WithDevelopment("sessionctl"))
//
//	// Staging: JSON format, debug level
//	logger.New(logger.WithStaging("sessionctl"))
//
//	// Production: JSON format, info level
//	logger.New(logger.WithProduction("sessionctl"))
//
// Output defaults to os.Stdout; use WithOutput to redirect it, for example to a
// bytes.Buffer in tests.
//
// # Attribute Helpers
//
// Helpers return the zero slog.Attr for empty input, which slog drops:
//
//	log.Error("session save abandoned",
//		logger.Component("session"),
//		logger.SessionKey(key),
//		logger.RetryCount(10),
//		logger.Error(err),
//	)
//
//	log.Warn("session backend read failed",
//		logger.Tier(1),
//		logger.Attempt(3),
//		logger.Duration(wait),
//	)
//
// Components without an injected logger use Discard.
package logger
