// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magnum Contributors

// Package errutil provides helpers for logging and asserting on oops
// errors carrying plugin lifecycle codes.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// Code extracts the error code from an oops error, or "" for plain
// errors. The CLI uses it to map lifecycle failures to exit status.
func Code(err error) string {
	if err == nil {
		return ""
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != "" {
			return code
		}
	}
	return ""
}

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}
