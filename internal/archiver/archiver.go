package archiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/turbolytics/registrar/internal"
	"github.com/turbolytics/registrar/internal/parquet"
	"github.com/turbolytics/registrar/pkg/reporter"
)

const (
	ReportKey = "report.json"
	ItemsKey  = "items.parquet"
)

type Option func(*Archiver)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

func WithRepository(repository internal.Repository) Option {
	return func(a *Archiver) {
		a.repository = repository
	}
}

// WithParquet also writes the report lines as a parquet file.
func WithParquet(encoder *parquet.Encoder) Option {
	return func(a *Archiver) {
		a.parquet = encoder
	}
}

// Archiver preserves run reports in a repository.
type Archiver struct {
	logger     *zap.Logger
	repository internal.Repository
	parquet    *parquet.Encoder
}

// Archive writes report.json and, when enabled, items.parquet.
func (a *Archiver) Archive(ctx context.Context, report reporter.Report) error {
	if a.repository == nil {
		return nil
	}

	bs, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := a.repository.Write(ctx, ReportKey, bytes.NewReader(bs)); err != nil {
		return fmt.Errorf("writing %s: %w", ReportKey, err)
	}

	if a.parquet != nil {
		var buf bytes.Buffer
		if err := a.parquet.Encode(&buf, report); err != nil {
			return err
		}
		if err := a.repository.Write(ctx, ItemsKey, &buf); err != nil {
			return fmt.Errorf("writing %s: %w", ItemsKey, err)
		}
	}

	a.logger.Info("report archived",
		zap.String("run_id", report.RunID),
		zap.Int("items", len(report.Items)),
		zap.Bool("parquet", a.parquet != nil),
	)
	return nil
}

func New(opts ...Option) *Archiver {
	a := Archiver{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&a)
	}
	return &a
}
