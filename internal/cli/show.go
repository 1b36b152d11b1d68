package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pydefs/internal/config"
	"github.com/mvp-joe/pydefs/internal/storage"
)

var (
	showRunFlag    string
	showDBFlag     string
	showListFlag   bool
	showIndentFlag int
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show PATH",
	Short: "Print a Module Record stored by extract --db",
	Long: `Show reads a database written by "pydefs extract --db" and prints the
Module Record stored for PATH. PATH must be given exactly as it was passed
to (or discovered by) extract. Without --run the most recent run is used.

Examples:
  # Print the latest stored record for a file
  pydefs show --db defs.db src/models.py

  # List stored runs
  pydefs show --db defs.db --list
`,
	Args: func(cmd *cobra.Command, args []string) error {
		if showListFlag {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := showDBFlag
		if dbPath == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath = cfg.Storage.Database
		}
		if dbPath == "" {
			return fmt.Errorf("no database given: use --db or storage.database")
		}

		if showListFlag {
			return listRuns(dbPath, cmd.OutOrStdout())
		}
		return show(dbPath, showRunFlag, args[0], showIndentFlag, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVar(&showDBFlag, "db", "", "SQLite database written by extract --db")
	showCmd.Flags().StringVar(&showRunFlag, "run", "", "Run id (default: most recent run)")
	showCmd.Flags().BoolVar(&showListFlag, "list", false, "List stored runs instead of printing a record")
	showCmd.Flags().IntVar(&showIndentFlag, "indent", 2, "Spaces per indentation level (0 for compact output)")
}

// show prints the record stored for path in runID, or in the latest run when
// runID is empty.
func show(dbPath, runID, path string, indent int, w io.Writer) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	reader := storage.NewReader(db)
	if runID == "" {
		if runID, err = reader.LatestRun(); err != nil {
			return err
		}
	}

	record, err := reader.LoadModule(runID, path)
	if err != nil {
		return err
	}

	encoder, err := newRecordEncoder(w, config.FormatStream, indent)
	if err != nil {
		return err
	}
	if err := encoder.Encode(path, record); err != nil {
		return err
	}
	return encoder.Close()
}

func listRuns(dbPath string, w io.Writer) error {
	db, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := storage.NewReader(db).ListRuns()
	if err != nil {
		return err
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %d modules  %d failures\n",
			run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Modules, run.Failures)
	}
	return nil
}
