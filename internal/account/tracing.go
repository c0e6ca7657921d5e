// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/accountd/accountd/internal/account"

func (s *Service) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "account."+op, trace.WithAttributes(attrs...))
}

// endSpan marks failed operations with their error kind. Error messages carry
// no credentials, so recording them is safe.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}

func userIDAttr(id int64) attribute.KeyValue {
	return attribute.Int64("accountd.user_id", id)
}
