package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/modelmig/internal/migerr"
)

func TestFormatError(t *testing.T) {
	out := FormatError(ErrorOptions{
		Context:      "config error",
		Problem:      "bad port",
		Details:      []string{"server.port out of range"},
		HelpCommands: []string{"modelmig --help"},
		NoColor:      true,
	})

	assert.Equal(t, "❌ CONFIG ERROR: bad port\n\n   server.port out of range\n\n   → modelmig --help\n", out)
}

func TestFormatError_NoContext(t *testing.T) {
	assert.Equal(t, "❌ boom\n", FormatError(ErrorOptions{Problem: "boom", NoColor: true}))
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	WriteSuccess(&buf, "done", true)
	assert.Equal(t, "✓ done\n", buf.String())
}

func TestBatchError(t *testing.T) {
	err := migerr.NewBatchMigrationError([]error{
		&migerr.UnknownSchemaError{Filename: "x.invoices", Namespace: "http://www.example.org/invoices", Version: "1.0"},
	})
	batchErr, ok := err.(*migerr.BatchMigrationError)
	require.True(t, ok)

	out := BatchError(batchErr, true)
	assert.Contains(t, out, "MIGRATION FAILED: 1 document could not be migrated")
	assert.Contains(t, out, "x.invoices [unknown_schema]: ")
	assert.Contains(t, out, "→ See the catalogue: modelmig catalogue")
}
