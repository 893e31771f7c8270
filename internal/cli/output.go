// Package cli renders command results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format for CLI commands
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// OutputFormats lists the accepted --output values.
var OutputFormats = []string{string(OutputFormatTable), string(OutputFormatJSON), string(OutputFormatYAML)}

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return f, nil
	case "":
		return OutputFormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q, must be one of %s", s, strings.Join(OutputFormats, ", "))
	}
}

// columnOrder puts well-known fields first; the rest follow alphabetically.
var columnOrder = []string{"name", "id", "driveType", "status", "exitCode", "httpStatus", "location", "message"}

// Printer writes values in the selected format.
type Printer struct {
	out    io.Writer
	format OutputFormat
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, format OutputFormat) *Printer {
	return &Printer{out: out, format: format}
}

// Print renders v, usually a struct or a slice of structs. Field names
// come from the json tags.
func (p *Printer) Print(v interface{}) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	switch p.format {
	case OutputFormatJSON:
		var pretty interface{}
		_ = json.Unmarshal(jsonData, &pretty)
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		fmt.Fprintln(p.out, string(out))
		return nil
	case OutputFormatYAML:
		return p.outputYAML(jsonData)
	case OutputFormatTable, "":
		return p.outputTable(jsonData)
	default:
		return fmt.Errorf("unsupported output format: %s", p.format)
	}
}

// outputYAML converts JSON to YAML and prints it
func (p *Printer) outputYAML(jsonData []byte) error {
	var data interface{}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to convert to YAML: %w", err)
	}

	fmt.Fprint(p.out, string(yamlData))
	return nil
}

func (p *Printer) outputTable(jsonData []byte) error {
	var data interface{}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	switch d := data.(type) {
	case map[string]interface{}:
		return p.formatKeyValueTable(d)
	case []interface{}:
		return p.formatTableFromArray(d)
	default:
		fmt.Fprintln(p.out, string(jsonData))
		return nil
	}
}

// formatTableFromArray creates a table from an array of objects
func (p *Printer) formatTableFromArray(data []interface{}) error {
	if len(data) == 0 {
		fmt.Fprintln(p.out, text.FgYellow.Sprint("No items found"))
		return nil
	}

	firstObj, ok := data[0].(map[string]interface{})
	if !ok {
		for _, item := range data {
			fmt.Fprintf(p.out, "  • %v\n", item)
		}
		return nil
	}

	columns := orderColumns(firstObj)

	t := p.newTable()
	headers := make(table.Row, len(columns))
	for i, col := range columns {
		headers[i] = text.FgHiCyan.Sprint(strings.ToUpper(col))
	}
	t.AppendHeader(headers)

	for _, item := range data {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		row := make(table.Row, len(columns))
		for i, col := range columns {
			row[i] = formatCellValue(col, itemMap[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

// formatKeyValueTable shows a single object as FIELD/VALUE rows.
func (p *Printer) formatKeyValueTable(data map[string]interface{}) error {
	t := p.newTable()
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("FIELD"), text.FgHiCyan.Sprint("VALUE")})
	for _, key := range orderColumns(data) {
		t.AppendRow(table.Row{text.FgHiBlue.Sprint(key), formatCellValue(key, data[key])})
	}
	t.Render()
	return nil
}

func (p *Printer) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	return t
}

func orderColumns(sample map[string]interface{}) []string {
	var columns []string
	used := make(map[string]bool)
	for _, col := range columnOrder {
		if _, ok := sample[col]; ok {
			columns = append(columns, col)
			used[col] = true
		}
	}

	var rest []string
	for key := range sample {
		if !used[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func formatCellValue(column string, value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return text.FgHiBlack.Sprint("-")
	case bool:
		if v {
			return text.FgGreen.Sprint("✓")
		}
		return text.FgRed.Sprint("✗")
	case string:
		if column == "status" {
			return formatStatus(v)
		}
		if v == "" {
			return text.FgHiBlack.Sprint("-")
		}
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case map[string]interface{}, []interface{}:
		compact, _ := json.Marshal(v)
		return string(compact)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatStatus(status string) interface{} {
	switch strings.ToUpper(status) {
	case "OK", "PASSED":
		return text.FgGreen.Sprint(status)
	case "ERROR", "FAILED":
		return text.FgRed.Sprint(status)
	default:
		return text.FgYellow.Sprint(status)
	}
}
