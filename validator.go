package csdl

import (
	"context"
	"time"

	"github.com/nlstn/go-csdl/edm"
	"github.com/nlstn/go-csdl/internal/observability"
	"github.com/nlstn/go-csdl/internal/validation"
)

// Validator runs the semantic rule battery over a resolved model.
type Validator struct {
	instrumented
}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{instrumented: newInstrumented()}
}

// Validate reports whether m is valid together with every violation found. All rules run
// to completion, and resolution errors recorded on the model are included.
func (v *Validator) Validate(ctx context.Context, m *edm.Model) (bool, edm.Errors) {
	if m == nil {
		return false, edm.Errors{edm.NewError(edm.ErrBadUnresolvedTarget, edm.Location{}, "model is nil")}
	}
	start := time.Now()
	ctx, span := v.obs.Tracer().StartValidate(ctx)
	defer span.End()

	ok, errs := validation.Validate(m, validation.Options{Logger: v.logger})

	span.SetAttributes(observability.ValidAttr(ok), observability.ErrorCountAttr(len(errs)))
	v.obs.Metrics().RecordOperation(ctx, "validate", "", len(errs), time.Since(start))
	v.logger.Debug("Validated model", "valid", ok, "errors", len(errs))
	return ok, errs
}

// Validate checks m with a default Validator.
func Validate(m *edm.Model) (bool, edm.Errors) {
	return NewValidator().Validate(context.Background(), m)
}
