// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package errutil bridges oops errors to slog and to test assertions.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// Code returns the oops code carried by err, or "" for plain errors.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code := oopsErr.Code(); code != nil {
		return fmt.Sprint(code)
	}
	return ""
}

// Attrs converts err into slog attributes: the message, the oops code and
// the oops context as a group. Plain errors yield only the message.
func Attrs(err error) []any {
	attrs := []any{slog.String("error", err.Error())}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return attrs
	}
	if code := Code(err); code != "" {
		attrs = append(attrs, slog.String("code", code))
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		group := make([]any, 0, len(ctx)*2)
		for k, v := range ctx {
			group = append(group, k, v)
		}
		attrs = append(attrs, slog.Group("context", group...))
	}
	return attrs
}

// LogError logs err at ERROR with its oops code and context.
// ctx is passed to the handler so trace ids are attached.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, Attrs(err)...)
}
