// Package actor carries the acting identity through a context and provides
// the scoped "run as" operation used for every privileged call.
package actor

import (
	"context"
	"fmt"
	"log/slog"

	"reviewcreator/internal/models"
)

type ctxKey struct{}

// FromContext returns the identity the current call acts as, if any.
func FromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(ctxKey{}).(string)
	return name, ok && name != ""
}

// WithIdentity sets the acting identity without any permission check. Use
// RunAs unless name is already trusted.
func WithIdentity(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxKey{}, name)
}

type Directory interface {
	GetUser(ctx context.Context, name string) (models.Identity, error)
}

// Impersonator decides who the engine may act as and tracks open scopes.
type Impersonator struct {
	dir    Directory
	logger *slog.Logger
}

func NewImpersonator(dir Directory, logger *slog.Logger) *Impersonator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Impersonator{dir: dir, logger: logger}
}

// CanActAs reports whether name resolves to an active identity.
func (i *Impersonator) CanActAs(ctx context.Context, name string) bool {
	if name == "" {
		return false
	}
	id, err := i.dir.GetUser(ctx, name)
	if err != nil {
		i.logger.Debug("identity lookup failed", "identity", name, "error", err)
		return false
	}
	return id.Active
}

// RunAs runs fn with name as the acting identity. The scope is entered only
// if the impersonator allows it and is left on every return path, including
// panics raised by fn.
func RunAs[T any](ctx context.Context, imp *Impersonator, name string, fn func(ctx context.Context) (T, error)) (res T, err error) {
	if !imp.CanActAs(ctx, name) {
		return res, fmt.Errorf("%w: %s", models.ErrCannotActAs, name)
	}

	prev, _ := FromContext(ctx)
	imp.logger.Debug("entering identity scope", "identity", name, "previous", prev)
	defer imp.logger.Debug("leaving identity scope", "identity", name, "previous", prev)

	return fn(WithIdentity(ctx, name))
}

// Do is RunAs for work that produces no value.
func Do(ctx context.Context, imp *Impersonator, name string, fn func(ctx context.Context) error) error {
	_, err := RunAs(ctx, imp, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
