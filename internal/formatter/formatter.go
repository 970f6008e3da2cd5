// package formatter exports journal entries to CSV, Markdown, plain text, JSON, and YAML
//
// Every exporter renders entries as they are visible at the export time: sealed capsules keep their title and dates
// but their body is replaced with a placeholder.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/capsule/internal/journal"
	"github.com/desertthunder/capsule/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatMarkdown, FormatText, FormatJSON, FormatYAML}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// Export is a set of entries rendered at a point in time.
type Export struct {
	UserID     string          `json:"user_id" yaml:"user_id"`
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Entries    []journal.Entry `json:"entries" yaml:"entries"`
}

// NewExport prepares entries for export at now.
func NewExport(userID string, entries []*journal.Entry, now time.Time) *Export {
	visible := make([]journal.Entry, 0, len(entries))
	for _, e := range entries {
		visible = append(visible, e.Visible(now))
	}
	return &Export{UserID: userID, ExportedAt: now.UTC(), Entries: visible}
}

// ExportToCSV converts an Export to CSV format with columns: ID, Created, Title, Mood, Sealed Until, Body
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Created", "Title", "Mood", "Sealed Until", "Body"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range export.Entries {
		record := []string{
			e.ID,
			e.CreatedAt.Format(time.RFC3339),
			e.Title,
			e.Mood,
			sealedDate(e),
			e.Body,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an Export to Markdown with one section per entry
func ExportToMarkdown(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Journal\n\n")
	fmt.Fprintf(&buf, "**Entries**: %d\n", len(export.Entries))
	fmt.Fprintf(&buf, "**Exported**: %s\n\n", export.ExportedAt.Format(time.DateOnly))

	for _, e := range export.Entries {
		fmt.Fprintf(&buf, "## %s\n\n", headingFor(e))
		fmt.Fprintf(&buf, "*%s*", e.CreatedAt.Format("Monday, January 2, 2006"))
		if e.Mood != "" {
			fmt.Fprintf(&buf, " · mood: %s", e.Mood)
		}
		if e.SealedUntil != nil {
			fmt.Fprintf(&buf, " · capsule: %s", sealedDate(e))
		}
		buf.WriteString("\n\n")

		if e.Prompt != "" {
			fmt.Fprintf(&buf, "> %s\n\n", e.Prompt)
		}
		if e.Body != "" {
			fmt.Fprintf(&buf, "%s\n\n", e.Body)
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts an Export to plain text format
func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Journal: %d entries\n\n", len(export.Entries))
	for i, e := range export.Entries {
		fmt.Fprintf(&buf, "%d. [%s] %s\n", i+1, e.CreatedAt.Format(time.DateOnly), headingFor(e))
		if e.Body != "" {
			for _, line := range strings.Split(e.Body, "\n") {
				fmt.Fprintf(&buf, "   %s\n", line)
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts an Export to indented JSON
func ExportToJSON(export *Export) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// ExportToYAML converts an Export to YAML
func ExportToYAML(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(export); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// Render dispatches to the exporter for format.
func Render(export *Export, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	case FormatJSON:
		return ExportToJSON(export)
	case FormatYAML:
		return ExportToYAML(export)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders export and writes it to path.
//
// Defaults to journal_{date}{ext} in the current directory when path is empty.
func WriteExport(export *Export, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("journal_%s%s", export.ExportedAt.Format("20060102"), format.Extension())
	}

	data, err := Render(export, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

func headingFor(e journal.Entry) string {
	if strings.TrimSpace(e.Title) != "" {
		return e.Title
	}
	return "Untitled"
}

func sealedDate(e journal.Entry) string {
	if e.SealedUntil == nil {
		return ""
	}
	return e.SealedUntil.Format(time.DateOnly)
}
