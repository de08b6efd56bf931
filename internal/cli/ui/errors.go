// Package ui formats terminal output of the modelmig CLI
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conduit-lang/modelmig/internal/migerr"
)

// ErrorOptions configures the error message formatting
type ErrorOptions struct {
	Context      string
	Problem      string
	Details      []string
	HelpCommands []string
	NoColor      bool
}

// FormatError creates a standardized error message
//
// Example output:
//
//	❌ MIGRATION FAILED: 2 documents could not be migrated
//
//	   Main.library [unresolved_reference] step 2:remap_reference: ...
//	   Odd.persons [no_matching_variant] step 1:retype: ...
//
//	   → See the catalogue: modelmig catalogue
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	headerColor := color.New(color.FgRed, color.Bold)
	bodyColor := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)
	if opts.NoColor {
		headerColor.DisableColor()
		bodyColor.DisableColor()
		cyan.DisableColor()
	}

	if opts.Context != "" {
		headerColor.Fprintf(&b, "❌ %s: %s\n", strings.ToUpper(opts.Context), opts.Problem)
	} else {
		headerColor.Fprintf(&b, "❌ %s\n", opts.Problem)
	}

	if len(opts.Details) > 0 {
		b.WriteString("\n")
		for _, d := range opts.Details {
			bodyColor.Fprintf(&b, "   %s\n", d)
		}
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted error message to the writer
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// BatchError lists every failed document of a batch
func BatchError(err *migerr.BatchMigrationError, noColor bool) string {
	failures := err.Failures()
	details := make([]string, len(failures))
	for i, f := range failures {
		step := ""
		if f.Step != "" {
			step = " step " + f.Step
		}
		details[i] = fmt.Sprintf("%s [%s]%s: %s", f.Filename, f.Code, step, f.Message)
	}

	noun := "documents"
	if len(failures) == 1 {
		noun = "document"
	}
	return FormatError(ErrorOptions{
		Context: "MIGRATION FAILED",
		Problem: fmt.Sprintf("%d %s could not be migrated", len(failures), noun),
		Details: details,
		HelpCommands: []string{
			"See the catalogue: modelmig catalogue",
			"Get help: modelmig migrate --help",
		},
		NoColor: noColor,
	})
}

// ConfigError creates a standardized configuration error
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      "CONFIGURATION ERROR",
		Problem:      message,
		HelpCommands: []string{"Check modelmig.yaml or the MODELMIG_ environment variables"},
		NoColor:      noColor,
	})
}
