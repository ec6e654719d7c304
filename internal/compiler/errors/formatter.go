package errors

import (
	"fmt"
	"strings"
)

// FormatError returns a human-readable error message for terminal output
func FormatError(e *CompilerError) string {
	var b strings.Builder

	icon := severityIcon(e.Severity)

	source := e.Source
	if source == "" {
		source = "<database>"
	}

	fmt.Fprintf(&b, "%s %s in %s [%s]\n", icon, categoryDisplayName(e.Category), source, e.Code)

	if e.Subject != "" {
		fmt.Fprintf(&b, "At %s:\n", e.Subject)
	}
	fmt.Fprintf(&b, "  %s\n", e.Message)

	if e.Expected != "" || e.Actual != "" {
		b.WriteString("\n")
		if e.Expected != "" {
			fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
		}
		if e.Actual != "" {
			fmt.Fprintf(&b, "  Actual:   %s\n", e.Actual)
		}
	}

	if e.cause != nil {
		fmt.Fprintf(&b, "\nCaused by: %v\n", e.cause)
	}

	if e.Suggestion != "" {
		fmt.Fprintf(&b, "\n💡 %s\n", e.Suggestion)
	}

	return b.String()
}

// FormatCompact returns a compact one-line error format
func FormatCompact(e *CompilerError) string {
	var b strings.Builder
	if e.Subject != "" {
		b.WriteString(e.Subject)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s: %s [%s]", e.Severity, e.Message, e.Code)
	if e.cause != nil {
		fmt.Fprintf(&b, ": %v", e.cause)
	}
	return b.String()
}

// severityIcon returns the emoji/icon for a severity level
func severityIcon(severity ErrorSeverity) string {
	switch severity {
	case SeverityError:
		return "❌"
	default:
		return "❓"
	}
}

// categoryDisplayName returns a human-readable category name
func categoryDisplayName(category ErrorCategory) string {
	switch category {
	case CategoryLoad:
		return "Load Error"
	case CategoryType:
		return "Type Error"
	case CategoryService:
		return "Service Resolution Error"
	case CategoryOwnership:
		return "Ownership Error"
	default:
		return "Compiler Error"
	}
}
