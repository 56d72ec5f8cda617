// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package dispatch turns a session and a procedure name into a registry
// call. It is the only place that reads sessions; procedures see just the
// call context built here.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/procauth/internal/callctx"
	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/internal/session"
	"github.com/holomush/procauth/pkg/errutil"
)

var tracer = otel.Tracer("procauth/dispatch")

// Dispatcher runs procedures on behalf of sessions.
type Dispatcher struct {
	registry *procedure.Registry
	realm    security.Realm
}

// New creates a dispatcher. Both dependencies are required.
func New(registry *procedure.Registry, realm security.Realm) (*Dispatcher, error) {
	if registry == nil {
		return nil, oops.Code(CodeNilDependency).Errorf("procedure registry is required")
	}
	if realm == nil {
		return nil, oops.Code(CodeNilDependency).Errorf("realm is required")
	}
	return &Dispatcher{registry: registry, realm: realm}, nil
}

// Procedures lists the registered procedures matching pattern.
func (d *Dispatcher) Procedures(pattern string) ([]procedure.Descriptor, error) {
	return d.registry.List(pattern)
}

// Call invokes the procedure name with args for session s.
//
// The user is re-read from the realm on every call, so role grants and
// revocations take effect on the caller's next call, and a suspended or
// deleted user's session stops working.
func (d *Dispatcher) Call(ctx context.Context, s session.Session, name string, args []any) (records []procedure.Record, err error) {
	start := time.Now()
	label := name
	if _, ok := d.registry.Get(name); !ok {
		label = unknownProcedure
	}
	defer func() {
		recordCall(label, statusOf(err), time.Since(start))
	}()

	if cerr := ctx.Err(); cerr != nil {
		return nil, cancelled(name, cerr)
	}

	subject, mode, err := d.identify(ctx, s)
	if err != nil {
		return nil, err
	}

	callID := ulid.Make().String()
	c, err := callctx.NewBuilder().
		With(callctx.FieldAuthSubject, subject).
		With(callctx.FieldAccessMode, mode).
		With(callctx.FieldCallID, callID).
		With(callctx.FieldProcedure, name).
		Build()
	if err != nil {
		return nil, callSetup("build call context", err)
	}
	ctx = callctx.WithContext(ctx, c)

	ctx, span := tracer.Start(ctx, "procedure.call",
		trace.WithAttributes(
			attribute.String("procedure.name", name),
			attribute.String("procedure.call_id", callID),
			attribute.String("auth.subject", subject.String()),
			attribute.String("auth.mode", mode.Name()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("procedure.records", len(records)))
		span.End()
	}()

	records, err = d.registry.Invoke(ctx, name, c, args)
	if err != nil {
		slog.WarnContext(ctx, "procedure call failed",
			append([]any{"procedure", name}, errutil.Attrs(err)...)...)
		return nil, err
	}
	slog.DebugContext(ctx, "procedure call completed",
		"procedure", name,
		"records", len(records),
		"duration", time.Since(start))
	return records, nil
}

// identify derives the subject and access mode for s from the realm's
// current view of the user.
func (d *Dispatcher) identify(ctx context.Context, s session.Session) (security.AuthSubject, security.AccessMode, error) {
	if s.AuthDisabled {
		return security.AuthDisabled, security.ModeFull, nil
	}

	u, err := d.realm.GetUser(ctx, s.Username)
	if errors.Is(err, security.ErrNotFound) {
		return security.AuthSubject{}, security.AccessMode{}, sessionInvalid(s.Username, "user deleted")
	}
	if err != nil {
		return security.AuthSubject{}, security.AccessMode{}, callSetup("load user", err)
	}
	if u.Suspended {
		return security.AuthSubject{}, security.AccessMode{}, sessionInvalid(s.Username, "user suspended")
	}
	return u.Subject(), security.DeriveAccessMode(u), nil
}
