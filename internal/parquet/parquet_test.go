package parquet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbolytics/registrar/pkg/reconciler"
	"github.com/turbolytics/registrar/pkg/reporter"
)

func TestEncode(t *testing.T) {
	report := reporter.Report{
		RunID: "run-1",
		Items: []reporter.Line{
			{Name: "svc-a", AssetID: "i1", LinkKey: "u1", Status: reconciler.StatusLinked, ApplicationID: "A1"},
			{Name: "svc-b", AssetID: "i2", LinkKey: "i2", Status: reconciler.StatusCreateFailed, Error: "boom"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, New().Encode(&buf, report))

	bs := buf.Bytes()
	require.Greater(t, len(bs), 8)
	assert.Equal(t, []byte("PAR1"), bs[:4])
	assert.Equal(t, []byte("PAR1"), bs[len(bs)-4:])
}

func TestNewRow(t *testing.T) {
	row := NewRow("run-1", reporter.Line{
		Name:       "svc",
		Status:     reconciler.StatusLinkFailed,
		DurationMs: 12,
	})
	assert.Equal(t, Row{RunID: "run-1", Name: "svc", Status: "link_failed", DurationMs: 12}, row)
}
