// File: pkg/formatter/summary_formatter.go
package formatter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bucketmirror/internal/service"
	"bucketmirror/pkg/storage"

	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Output formats accepted by --output
var SupportedFormats = []string{FormatTable, FormatJSON, FormatYAML}

type SummaryFormatter struct{}

func NewSummaryFormatter() *SummaryFormatter {
	return &SummaryFormatter{}
}

// Format renders the report in the requested output format. An empty format means table
func (f *SummaryFormatter) Format(report *service.Report, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatTable:
		return f.FormatTable(report), nil
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("error encoding report as JSON: %w", err)
		}
		return string(data), nil
	case FormatYAML:
		data, err := yaml.Marshal(report)
		if err != nil {
			return "", fmt.Errorf("error encoding report as YAML: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	default:
		return "", fmt.Errorf("unsupported output format '%s', expected one of: %s", format, strings.Join(SupportedFormats, ", "))
	}
}

func (f *SummaryFormatter) FormatTable(report *service.Report) string {
	var sb strings.Builder
	s := report.Summary

	title := "Sync Summary"
	if s.DryRun {
		title += " (dry run)"
	}
	sb.WriteString(FormatHeaderSection(title))
	sb.WriteString("\n\n")

	sb.WriteString(FormatSectionTitle("Target"))
	sb.WriteString("\n")
	target := NewTable("Parameter", "Value")
	target.AddRow("Source", report.Source)
	target.AddRow("Destination", Destination(report.Provider, report.Bucket, report.Prefix))
	target.AddRow("Elapsed", s.Elapsed.Round(time.Millisecond).String())
	sb.WriteString(target.String())
	sb.WriteString("\n\n")

	uploadedLabel, deletedLabel := "Uploaded", "Deleted"
	if s.DryRun {
		uploadedLabel, deletedLabel = "Would upload", "Would delete"
	}

	sb.WriteString(FormatSectionTitle("Results"))
	sb.WriteString("\n")
	results := NewTable("Outcome", "Count").AlignRight(1)
	results.AddRow("Scanned", strconv.FormatInt(s.Scanned, 10))
	results.AddRow(uploadedLabel, strconv.FormatInt(s.Uploaded, 10))
	results.AddRow("Skipped", strconv.FormatInt(s.Skipped, 10))
	results.AddRow("Failed", strconv.FormatInt(s.Failed, 10))
	results.AddRow(deletedLabel, strconv.FormatInt(s.Deleted, 10))
	results.AddRow("Transferred", storage.FormatBytes(s.BytesUploaded))
	sb.WriteString(results.String())

	if report.DeleteSkipped {
		sb.WriteString("\n\nDeletion of remote orphans was skipped.")
	}

	if len(report.Failures) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(FormatSectionTitle("Failures"))
		sb.WriteString("\n")
		failures := NewTable("Path", "Key", "Error")
		for _, fl := range report.Failures {
			failures.AddRow(fl.Path, fl.Key, fl.Error)
		}
		sb.WriteString(failures.String())
	}

	return sb.String()
}

// Destination renders provider://bucket/prefix
func Destination(provider, bucket, prefix string) string {
	dest := strings.ToLower(provider) + "://" + bucket
	if p := strings.Trim(prefix, "/"); p != "" {
		dest += "/" + p
	}
	return dest
}
