package sema

import "fmt"

// Level classifies a diagnostic's severity, grounded on the original
// compiler's diagnostics model (error/warning/not_implemented).
type Level int

const (
	// LevelError marks a diagnostic that prevents IR construction from
	// proceeding to bytecode emission.
	LevelError Level = iota
	// LevelWarning marks a diagnostic that does not block compilation.
	LevelWarning
	// LevelNotImplemented marks a construct recognized by the grammar but
	// not yet handled by this semantic analyzer.
	LevelNotImplemented
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelNotImplemented:
		return "not implemented"
	default:
		return "unknown"
	}
}

// SourceRange locates a diagnostic in the originating source text.
type SourceRange struct {
	Line   int
	Column int
}

// Message is one reported diagnostic.
type Message struct {
	Level Level
	Range SourceRange
	Text  string
}

func (m Message) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", m.Range.Line, m.Range.Column, m.Level, m.Text)
}

// Diagnostics accumulates messages produced during semantic analysis.
type Diagnostics struct {
	messages []Message

	errorCount   int
	warningCount int
}

// Report appends msg to the diagnostic list.
func (d *Diagnostics) Report(level Level, r SourceRange, text string) {
	d.messages = append(d.messages, Message{Level: level, Range: r, Text: text})
	switch level {
	case LevelError:
		d.errorCount++
	case LevelWarning:
		d.warningCount++
	}
}

// Reportf is [Diagnostics.Report] with fmt.Sprintf-style formatting.
func (d *Diagnostics) Reportf(level Level, r SourceRange, format string, args ...any) {
	d.Report(level, r, fmt.Sprintf(format, args...))
}

// Messages returns all reported diagnostics in report order.
func (d *Diagnostics) Messages() []Message { return d.messages }

// HasErrors reports whether any LevelError diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool { return d.errorCount > 0 }

// ErrorCount returns the number of LevelError diagnostics recorded.
func (d *Diagnostics) ErrorCount() int { return d.errorCount }

// WarningCount returns the number of LevelWarning diagnostics recorded.
func (d *Diagnostics) WarningCount() int { return d.warningCount }
