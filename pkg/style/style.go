// Package style renders command results for the terminal.
package style

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rawpipe/rawpipe/pkg/commands/list"
	"github.com/rawpipe/rawpipe/pkg/commands/setup"
	"github.com/rawpipe/rawpipe/pkg/commands/verify"
)

// Status types for split and setup reporting
type Status string

const (
	StatusOK      Status = "ok"
	StatusMissing Status = "missing"
	StatusSkipped Status = "skipped"
)

// StatusStyle returns the appropriate pterm style for a status
func StatusStyle(status Status) *pterm.Style {
	switch status {
	case StatusOK:
		return pterm.NewStyle(pterm.FgGreen)
	case StatusMissing:
		return pterm.NewStyle(pterm.FgRed, pterm.Bold)
	default:
		return pterm.NewStyle(pterm.FgGray)
	}
}

// RenderSetup renders the outcome of the setup command
func RenderSetup(r *setup.Result) string {
	var b strings.Builder

	if r.ConfigCreated {
		b.WriteString(fmt.Sprintf("config  : wrote %s\n", r.ConfigFile))
	} else {
		b.WriteString(fmt.Sprintf("config  : %s already present\n", r.ConfigFile))
	}

	for _, dir := range r.CreatedDirs {
		b.WriteString(fmt.Sprintf("created : %s\n", dir))
	}

	if r.BackendFound {
		b.WriteString(StatusStyle(StatusOK).Sprintf("backend : %s\n", r.BackendPath))
	} else {
		b.WriteString(StatusStyle(StatusMissing).Sprint("backend : not found in PATH\n"))
	}

	return strings.TrimRight(b.String(), "\n")
}

// RenderVerify renders per-split verification results
func RenderVerify(r *verify.Result) string {
	var b strings.Builder

	for _, s := range r.Splits {
		status := StatusOK
		if len(s.Missing) > 0 {
			status = StatusMissing
		}

		label := StatusStyle(status).Sprintf("%-8s", status)
		b.WriteString(fmt.Sprintf("%s %s: %d entries, %d missing\n", label, s.Split, s.Total, len(s.Missing)))

		for _, e := range s.Missing {
			b.WriteString(fmt.Sprintf("    line %d: %s\n", e.Line, e.Path))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// RenderList renders resolved manifest entries
func RenderList(r *list.Result) string {
	var b strings.Builder

	for _, e := range r.Entries {
		b.WriteString(e.Path + "\n")
	}
	if len(r.Entries) < r.Total {
		b.WriteString(pterm.NewStyle(pterm.FgGray).Sprintf("... %d more entries in %s\n", r.Total-len(r.Entries), r.Listing))
	}

	return strings.TrimRight(b.String(), "\n")
}
