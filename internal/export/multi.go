package export

import (
	"context"

	"go.uber.org/multierr"

	"github.com/y0f/apifuzz/internal/report"
)

// Multi fans every call out to all exporters. A failing exporter does not
// stop the others; the errors are combined.
type Multi []report.Exporter

func (m Multi) WriteToFile(ctx context.Context, r *report.Record) error {
	var errs error
	for _, e := range m {
		errs = multierr.Append(errs, e.WriteToFile(ctx, r))
	}
	return errs
}

func (m Multi) WriteSummary(ctx context.Context, records []*report.Record, total, success, warn, errors int) error {
	var errs error
	for _, e := range m {
		errs = multierr.Append(errs, e.WriteSummary(ctx, records, total, success, warn, errors))
	}
	return errs
}

func (m Multi) WriteReportFiles(ctx context.Context) error {
	var errs error
	for _, e := range m {
		errs = multierr.Append(errs, e.WriteReportFiles(ctx))
	}
	return errs
}
