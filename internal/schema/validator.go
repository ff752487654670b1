// Package schema detects upstream schema drift in fetched market batches.
//
// Only the first record of a batch is inspected. A field missing from later
// records goes unnoticed here and surfaces in normalization instead.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/cg-market-etl/internal/alert"
	"github.com/rickgao/cg-market-etl/internal/model"
)

// SchemaMismatchError lists required fields missing from the first record.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: missing fields %s", strings.Join(e.Missing, ", "))
}

// Check returns a *SchemaMismatchError if the first record of batch lacks
// any of required. An empty batch passes.
func Check(batch []model.Record, required []string) error {
	if len(batch) == 0 {
		return nil
	}

	first := batch[0]
	var missing []string
	for _, field := range required {
		if !first.Has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Missing: missing}
	}
	return nil
}

// Validator checks batches and alerts operators on mismatch.
type Validator struct {
	notifier alert.Notifier
	source   string
	logger   *slog.Logger
}

// NewValidator creates a Validator. source names the endpoint in alerts.
func NewValidator(notifier alert.Notifier, source string, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		notifier: notifier,
		source:   source,
		logger:   logger,
	}
}

// Validate reports whether the first record of batch carries every required
// field. On mismatch it sends exactly one alert and returns false; deciding
// whether to continue is left to the caller.
func (v *Validator) Validate(ctx context.Context, batch []model.Record, required []string) bool {
	err := Check(batch, required)
	if err == nil {
		v.logger.Debug("schema check passed",
			"source", v.source,
			"fields", len(required),
		)
		return true
	}

	mismatch := err.(*SchemaMismatchError)
	v.logger.Warn("schema mismatch in first record",
		"source", v.source,
		"missing", mismatch.Missing,
		"coin_id", batch[0].ID(),
	)

	a := alert.Alert{
		Subject: fmt.Sprintf("[cg-market-etl] schema mismatch on %s", v.source),
		Body: fmt.Sprintf(
			"The first record returned by %s is missing expected fields:\n\n  %s\n\nThe run continues unless configured to abort.",
			v.source, strings.Join(mismatch.Missing, "\n  "),
		),
	}
	if err := v.notifier.Notify(ctx, a); err != nil {
		v.logger.Error("failed to dispatch schema alert", "error", err)
	}

	return false
}
