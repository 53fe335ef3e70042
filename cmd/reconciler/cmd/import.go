package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"membership-reconciliation-service/cmd/reconciler/config"
	"membership-reconciliation-service/internal/importer"
	"membership-reconciliation-service/internal/parsers"
	"membership-reconciliation-service/internal/reporter"
	"membership-reconciliation-service/internal/storage"
	apperrors "membership-reconciliation-service/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the import command
var (
	statementFile string
	bankFormat    string
	feeYear       int
	threshold     int
	dryRun        bool
	dbPath        string
	outputFormat  string
	outputFile    string
	performedBy   string
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bank statement CSV and reconcile payments",
	Long: `Import parses a bank statement CSV export, matches each deposit row
against the open membership fee invoices of the given year, and creates
payments for matches at or above the confidence threshold.

Examples:
  # Basic import against the bundled SQLite database
  reconciler import --file statement.csv --year 2026

  # Preview only, nothing is written
  reconciler import --file statement.csv --year 2026 --dry-run

  # Bank-specific column layout and a stricter threshold
  reconciler import --file statement.csv --format kookmin --year 2026 --threshold 95

  # JSON report to a file
  reconciler import --file statement.csv --year 2026 --output-format json --output-file report.json`,

	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&statementFile, "file", "i", "", "path to bank statement CSV file (required)")
	importCmd.Flags().StringVar(&bankFormat, "format", "standard", "bank CSV format (see 'reconciler formats')")
	importCmd.Flags().IntVarP(&feeYear, "year", "y", 0, "membership fee year (default: current year)")
	importCmd.Flags().IntVarP(&threshold, "threshold", "t", importer.DefaultAutoConfirmThreshold, "auto-confirm confidence threshold (1-100)")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "match and report without creating payments")
	importCmd.Flags().StringVar(&dbPath, "db", "reconciler.db", "path to the SQLite database")
	importCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	importCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	importCmd.Flags().StringVar(&performedBy, "performed-by", "", "operator identifier recorded in the audit log")

	importCmd.MarkFlagRequired("file")

	viper.BindPFlag("file", importCmd.Flags().Lookup("file"))
	viper.BindPFlag("format", importCmd.Flags().Lookup("format"))
	viper.BindPFlag("year", importCmd.Flags().Lookup("year"))
	viper.BindPFlag("threshold", importCmd.Flags().Lookup("threshold"))
	viper.BindPFlag("dry-run", importCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("db", importCmd.Flags().Lookup("db"))
	viper.BindPFlag("output-format", importCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", importCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("performed-by", importCmd.Flags().Lookup("performed-by"))
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	statementFile = viper.GetString("file")
	bankFormat = viper.GetString("format")
	feeYear = viper.GetInt("year")
	threshold = viper.GetInt("threshold")
	dryRun = viper.GetBool("dry-run")
	dbPath = viper.GetString("db")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	performedBy = viper.GetString("performed-by")

	if statementFile == "" {
		return fmt.Errorf("file is required")
	}
	if err := validateFileExists(statementFile, "bank statement file"); err != nil {
		return err
	}

	if !knownFormat(bankFormat) {
		return fmt.Errorf("unknown bank format '%s'. Run 'reconciler formats' for the supported list", bankFormat)
	}

	if feeYear == 0 {
		feeYear = time.Now().Year()
	}
	if feeYear < 2000 || feeYear > 2100 {
		return fmt.Errorf("year must be between 2000 and 2100, got %d", feeYear)
	}

	if threshold < 1 || threshold > 100 {
		return fmt.Errorf("threshold must be between 1 and 100, got %d", threshold)
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func knownFormat(name string) bool {
	for _, format := range parsers.ListBankFormats() {
		if format.Name == name {
			return true
		}
	}
	return false
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting import...\n")
		fmt.Fprintf(os.Stderr, "Statement file: %s\n", statementFile)
		fmt.Fprintf(os.Stderr, "Format: %s, Year: %d, Threshold: %d, Dry run: %v\n",
			bankFormat, feeYear, threshold, dryRun)
	}

	content, err := os.ReadFile(statementFile)
	if err != nil {
		return apperrors.FileError(apperrors.CodeFileNotFound, statementFile, err)
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := importer.NewImportService(store.Invoices, store.Payments, store, store)
	if err != nil {
		return err
	}

	result, err := service.ImportCsv(ctx, importer.ImportOptions{
		Year:                 feeYear,
		CsvContent:           string(content),
		CsvFormat:            bankFormat,
		AutoConfirmThreshold: threshold,
		DryRun:               dryRun,
	}, performedBy)
	if err != nil {
		return err
	}

	reportConfig := config.CreateReportConfig(outputFormat)
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nImport completed.\n")
		fmt.Fprintf(os.Stderr, "Parsed %d valid rows (%d errors).\n",
			result.Parsed.ValidCount, len(result.Parsed.Errors))
		fmt.Fprintf(os.Stderr, "Matched %d, needs review %d, unmatched %d, already paid %d.\n",
			result.Summary.MatchedCount, result.Summary.MultipleMatchCount,
			result.Summary.NoMatchCount, result.Summary.AlreadyPaidCount)
		if dryRun {
			fmt.Fprintf(os.Stderr, "Dry run: %d rows would be auto-confirmed.\n", result.Summary.AutoConfirmed)
		} else {
			fmt.Fprintf(os.Stderr, "Auto-confirmed %d payments.\n", result.Summary.AutoConfirmed)
		}
	}

	return nil
}
