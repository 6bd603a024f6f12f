package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

// Formatter writes records to a stream.
type Formatter interface {
	Write(w io.Writer, records []Record) error
}

// TextFormatter prints one line per record:
//
//	{type} {source}:{line} {message}
//
// An absent line prints as "None".
type TextFormatter struct {
	// Colorize controls whether the type column is colored by level.
	Colorize bool
}

// NewTextFormatter creates a text formatter.
func NewTextFormatter(colorize bool) *TextFormatter {
	return &TextFormatter{Colorize: colorize}
}

// Format formats a single record without a trailing newline.
func (f *TextFormatter) Format(r Record) string {
	typ := r.Type
	if f.Colorize {
		typ = levelColor(r.Level).Sprint(typ)
	}
	return fmt.Sprintf("%s %s:%s %s", typ, r.Source, lineText(r), r.Message)
}

// Write writes every record followed by a newline.
func (f *TextFormatter) Write(w io.Writer, records []Record) error {
	for _, r := range records {
		if _, err := fmt.Fprintln(w, f.Format(r)); err != nil {
			return err
		}
	}
	return nil
}

// Clean formats the line printed for a file without reportable records.
func (f *TextFormatter) Clean(path string) string {
	typ := LevelInfo.String()
	if f.Colorize {
		c := color.New(color.FgGreen)
		c.EnableColor()
		typ = c.Sprint(typ)
	}
	return fmt.Sprintf("%s File %s is clean.", typ, path)
}

// SimpleFormatter is a TextFormatter that never colorizes.
type SimpleFormatter struct{}

// Format formats a single record.
func (SimpleFormatter) Format(r Record) string {
	return (&TextFormatter{}).Format(r)
}

// Write writes every record followed by a newline.
func (SimpleFormatter) Write(w io.Writer, records []Record) error {
	return (&TextFormatter{}).Write(w, records)
}

// JSONFormatter writes all records as a single JSON array of objects with
// the keys line, source, level, type, message and full_message.
type JSONFormatter struct {
	Indent string
}

// Write encodes records as a JSON array. A nil slice encodes as [].
func (f *JSONFormatter) Write(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	return nil
}

func lineText(r Record) string {
	if !r.HasLine() {
		return "None"
	}
	return strconv.Itoa(r.LineOr(0))
}

// levelColor returns a color that is applied even when stdout is not a
// terminal; the caller has already decided to colorize.
func levelColor(l Level) *color.Color {
	var c *color.Color
	switch l {
	case LevelDebug:
		c = color.New(color.FgHiBlack)
	case LevelInfo:
		c = color.New(color.FgBlue)
	case LevelWarning:
		c = color.New(color.FgYellow)
	case LevelError:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgRed, color.Bold)
	}
	c.EnableColor()
	return c
}
