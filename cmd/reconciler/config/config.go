// Package config assembles component configurations from CLI input.
package config

import (
	"membership-reconciliation-service/internal/reporter"
)

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "console":
		config.Format = reporter.FormatConsole
		config.IncludeReviewRows = true
		config.IncludeUnmatched = true
		config.IncludeParseErrors = true
		config.IncludeCandidates = true
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	}

	return config
}
