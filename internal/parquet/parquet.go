package parquet

import (
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/turbolytics/registrar/pkg/reporter"
)

// Row is the parquet layout of a report line.
type Row struct {
	RunID         string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Name          string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	AssetID       string `parquet:"name=asset_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	LinkKey       string `parquet:"name=link_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status        string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	ApplicationID string `parquet:"name=application_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Error         string `parquet:"name=error, type=BYTE_ARRAY, convertedtype=UTF8"`
	DurationMs    int64  `parquet:"name=duration_ms, type=INT64"`
}

func NewRow(runID string, l reporter.Line) Row {
	return Row{
		RunID:         runID,
		Name:          l.Name,
		AssetID:       l.AssetID,
		LinkKey:       l.LinkKey,
		Status:        string(l.Status),
		ApplicationID: l.ApplicationID,
		Error:         l.Error,
		DurationMs:    l.DurationMs,
	}
}

type Option func(*Encoder)

func WithCompression(codec parquet.CompressionCodec) Option {
	return func(e *Encoder) {
		e.compression = codec
	}
}

// Encoder writes the per-item lines of a report as a parquet file.
type Encoder struct {
	compression parquet.CompressionCodec
}

func New(opts ...Option) *Encoder {
	e := &Encoder{
		compression: parquet.CompressionCodec_SNAPPY,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Encoder) Encode(w io.Writer, report reporter.Report) error {
	pw, err := writer.NewParquetWriterFromWriter(w, new(Row), 1)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	pw.CompressionType = e.compression

	for i, l := range report.Items {
		if err := pw.Write(NewRow(report.RunID, l)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finishing parquet file: %w", err)
	}
	return nil
}
