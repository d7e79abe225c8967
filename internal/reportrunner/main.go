package reportrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	configFile  string
	profile     string
	envFile     string
	conn        ConnConfig
	logFormat   string
	verbose     bool
	historyFile string
	noHistory   bool

	format string
	month  int
	year   int

	historyLimit  int
	historyOutput string

	reset resetOptions
}

type resolvedConfig struct {
	conn       ConnConfig
	file       fileConfig
	configPath string
}

func Run() error {
	root := NewRootCmd()
	root.SetArgs(os.Args[1:])
	return root.ExecuteContext(context.Background())
}

// NewRootCmd builds the reportrunner command tree. Running the root command
// without a subcommand runs every report.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "reportrunner",
		Short: "Run the reporting stored procedures and print their rows",
		Long: `reportrunner opens one database connection, calls the reporting stored
procedures one after another and prints each result set to stdout.

Examples:
  reportrunner --host db.internal --user reports --credential env:DB_PASSWORD
  reportrunner run monthly-sales --month 7 --year 2024 --format csv
  reportrunner check --profile staging`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReports(cmd, opts, nil)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to config file (default: reportrunner.yaml or ~/.reportrunner/config.yaml)")
	pf.StringVar(&opts.profile, "profile", "", "Connection profile from the config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Load environment variables from this file when it exists")
	pf.StringVar(&opts.conn.Driver, "driver", "", "Database driver: mysql, postgres, sqlite")
	pf.StringVar(&opts.conn.URL, "url", "", "Connection URL scheme://[user@]host:port/database")
	pf.StringVar(&opts.conn.Host, "host", "", "Database host")
	pf.IntVar(&opts.conn.Port, "port", 0, "Database port (default 3306 for mysql, 5432 for postgres)")
	pf.StringVar(&opts.conn.Database, "database", "", "Database name, or file path for sqlite")
	pf.StringVar(&opts.conn.User, "user", "", "Database user")
	pf.StringVar(&opts.conn.Credential, "credential", "", "Password reference: env:NAME or file:PATH")
	pf.StringToStringVar(&opts.conn.Params, "param", nil, "Extra driver parameter key=value (repeatable)")
	pf.StringVar(&opts.logFormat, "log-format", "text", "Log format on stderr: text or json")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logs")
	pf.StringVar(&opts.historyFile, "history-file", defaultHistoryFile(), "Path to run history JSONL file")
	pf.BoolVar(&opts.noHistory, "no-history", false, "Disable run history recording")

	addRunFlags(root.Flags(), opts)

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newShowCmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	root.AddCommand(newResetCmd(opts))

	return root
}

func addRunFlags(fs *pflag.FlagSet, opts *options) {
	fs.StringVar(&opts.format, "format", formatText, "Output format: text, csv, json or table")
	fs.IntVar(&opts.month, "month", defaultSalesMonth, "Month passed to the monthly sales report")
	fs.IntVar(&opts.year, "year", defaultSalesYear, "Year passed to the monthly sales report")
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [report...]",
		Short: "Run all reports, or only the named ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReports(cmd, opts, args)
		},
	}
	addRunFlags(cmd.Flags(), opts)
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resolveFileConfig(opts)
			if err != nil {
				return err
			}
			reports, err := allReports(defaultSalesMonth, defaultSalesYear, res.file.Reports)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(reports))
			for _, r := range reports {
				params := make([]string, len(r.Params))
				for i, p := range r.Params {
					params[i] = p.Name
				}
				rows = append(rows, []string{r.Key, r.Procedure, strings.Join(params, ", "), strings.Join(r.ColumnNames(), ", ")})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"report", "procedure", "params", "columns"}, rows))
			return err
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check [report...]",
		Short: "Verify that the report procedures exist in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.verbose)
			if err != nil {
				return err
			}

			res, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			reports, err := allReports(defaultSalesMonth, defaultSalesYear, res.file.Reports)
			if err != nil {
				return err
			}
			selected, err := selectReports(reports, args)
			if err != nil {
				return err
			}

			conn, err := connect(cmd.Context(), res.conn, logger)
			if err != nil {
				return err
			}
			defer closeConnection(conn, logger)

			statuses, err := checkProcedures(cmd.Context(), conn.Querier(), conn.Driver(), selected)
			if err != nil {
				return err
			}
			missing, err := writeProcedureStatus(cmd.OutOrStdout(), statuses)
			if err != nil {
				return err
			}
			if missing > 0 {
				return fmt.Errorf("%d procedure(s) missing", missing)
			}
			return nil
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved connection configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			reports, err := allReports(defaultSalesMonth, defaultSalesYear, res.file.Reports)
			if err != nil {
				return err
			}

			_, credErr := resolveCredential(res.conn.Credential)
			payload := showPayload{
				ConfigFile:  res.configPath,
				Profile:     opts.profile,
				Connection:  res.conn,
				HistoryFile: historyPath(opts),
				Reports:     showReports(reports),
			}
			return writeShow(cmd.OutOrStdout(), payload, credErr)
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded report runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.historyLimit <= 0 {
				return errors.New("--limit must be > 0")
			}
			output := strings.ToLower(strings.TrimSpace(opts.historyOutput))
			return printHistory(cmd.OutOrStdout(), opts.historyFile, opts.historyLimit, output)
		},
	}
	cmd.Flags().IntVar(&opts.historyLimit, "limit", 20, "Number of history entries to show")
	cmd.Flags().StringVar(&opts.historyOutput, "output", "table", "Output format: table or json")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the run history file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resetHistory(cmd.InOrStdin(), cmd.OutOrStdout(), opts.historyFile, opts.reset)
		},
	}
	cmd.Flags().BoolVarP(&opts.reset.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.reset.dryRun, "dry-run", false, "Show what would be removed without deleting")
	return cmd
}

func runReports(cmd *cobra.Command, opts *options, keys []string) error {
	ctx := cmd.Context()

	logger, err := newLogger(cmd.ErrOrStderr(), opts.logFormat, opts.verbose)
	if err != nil {
		return err
	}
	runID := uuid.NewString()
	logger = logger.With(slog.String("run_id", runID))

	res, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	reports, err := allReports(opts.month, opts.year, res.file.Reports)
	if err != nil {
		return err
	}
	selected, err := selectReports(reports, keys)
	if err != nil {
		return err
	}

	out, err := newRowWriter(opts.format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	conn, err := connect(ctx, res.conn, logger)
	if err != nil {
		return err
	}
	defer closeConnection(conn, logger)

	runner := &Runner{
		Caller: conn.Caller(),
		Out:    out,
		Logger: logger,
		RunID:  runID,
		Record: historyRecorder(logger, historyPath(opts)),
	}
	if err := runner.Run(ctx, selected); err != nil {
		logFailure(logger, err)
		return err
	}
	return nil
}

func connect(ctx context.Context, cfg ConnConfig, logger *slog.Logger) (*Connection, error) {
	password, err := resolveCredential(cfg.Credential)
	if err != nil {
		return nil, err
	}

	conn, err := openConnection(ctx, cfg, password)
	if err != nil {
		logFailure(logger, err)
		return nil, fmt.Errorf("open database: %w", err)
	}

	logger.Debug("connected",
		slog.String("driver", cfg.Driver),
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)
	return conn, nil
}

func closeConnection(conn *Connection, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Warn("close connection", slog.Any("error", err))
	}
}

func logFailure(logger *slog.Logger, err error) {
	attrs := []any{slog.Any("error", err)}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		attrs = append(attrs, slog.String("report", dbErr.Report), slog.String("op", dbErr.Op))
	}
	logger.Error("report run failed", attrs...)
}

func historyPath(opts *options) string {
	if opts.noHistory {
		return ""
	}
	return opts.historyFile
}

// resolveFileConfig loads the config file only.
func resolveFileConfig(opts *options) (resolvedConfig, error) {
	var res resolvedConfig

	path, ok := findConfigFile(opts.configFile)
	if !ok {
		return res, nil
	}
	fc, err := loadConfigFile(path)
	if err != nil {
		return res, err
	}
	res.file = fc
	res.configPath = path
	return res, nil
}

// resolveConfig layers defaults, config file, profile, environment and flags,
// in that order, then validates the result. A URL is expanded inside the layer
// that sets it, so later layers still win over it.
func resolveConfig(cmd *cobra.Command, opts *options) (resolvedConfig, error) {
	res, err := resolveFileConfig(opts)
	if err != nil {
		return res, err
	}

	layers := []ConnConfig{res.file.Connection}

	if name := strings.TrimSpace(opts.profile); name != "" {
		p, ok := res.file.Profiles[name]
		if !ok {
			if res.configPath == "" {
				return res, fmt.Errorf("profile %q requested but no config file was found", name)
			}
			return res, fmt.Errorf("profile %q not found in %s", name, res.configPath)
		}
		layers = append(layers, p)
	}

	if err := loadEnvFile(opts.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return res, err
	}
	env, err := envConnConfig()
	if err != nil {
		return res, err
	}
	layers = append(layers, env, opts.conn)

	conn := defaultConnConfig()
	for _, layer := range layers {
		expanded, err := layer.expandURL()
		if err != nil {
			return res, err
		}
		conn.overlay(expanded)
	}

	if err := conn.finalize(); err != nil {
		return res, err
	}

	res.conn = conn
	return res, nil
}
