package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"name", "request", "status"},
		Rows: []map[string]string{
			{"name": "Ana Cruz", "request": "Transcript of Records", "status": "Pending"},
			{"name": "Ben Diaz", "status": "Released"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset(), "")
	require.NoError(t, err)
	assert.Equal(t, "name,request,status\nAna Cruz,Transcript of Records,Pending\nBen Diaz,,Released\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Clearance Requests")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 40))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 16))
}
