package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yurifrl/planillas/pkg/aportantes"
	"github.com/yurifrl/planillas/pkg/archive"
	"github.com/yurifrl/planillas/pkg/config"
	"github.com/yurifrl/planillas/pkg/executors"
	"github.com/yurifrl/planillas/pkg/history"
	"github.com/yurifrl/planillas/pkg/importer"
	"github.com/yurifrl/planillas/pkg/plan"
	"github.com/yurifrl/planillas/pkg/planilla"
	"github.com/yurifrl/planillas/pkg/server"
	"github.com/yurifrl/planillas/pkg/service"
	"github.com/yurifrl/planillas/pkg/session"
)

var (
	cliFilters filters
	cfgFile    string
)

var rootCmd = &cobra.Command{
	Use:           "planillas",
	Short:         "Bank ledger reconciliation and PILA planilla extraction",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// setup loads configuration and opens the history store. The returned
// close func must be called when the command is done.
func setup(cmd *cobra.Command) (*config.Config, *log.Logger, history.Store, func(), error) {
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := cfg.Logger("planillas")
	store, closeStore, err := service.OpenHistory(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, logger, store, closeStore, nil
}

func printStats(out *service.Outcome) {
	s := out.Stats
	fmt.Printf("Fecha archivos:    %s\n", out.AsOf)
	fmt.Printf("Matches:           %d\n", s.MatchesFound)
	fmt.Printf("Capital actual:    %d\n", s.CapitalCurrent)
	fmt.Printf("Capital anterior:  %d\n", s.CapitalPrior)
	fmt.Printf("Interés actual:    %d\n", s.InterestCurrent)
	fmt.Printf("Interés anterior:  %d\n", s.InterestPrior)
	fmt.Printf("Archivos tipo I:   %d\n", s.TotalDetailFiles)
	fmt.Printf("Errores:           %d\n", s.ErrorCount)
}

var cruceCmd = &cobra.Command{
	Use:   "cruce <ledger> <details_dir>",
	Short: "Reconcile a bank ledger against a directory of type I files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, store, closeStore, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		proc, err := service.FromConfig(cfg, logger, store)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		persist, _ := cmd.Flags().GetBool("persist")
		force, _ := cmd.Flags().GetBool("force")

		out, err := proc.Reconcile(cmd.Context(), service.InputFromPaths(args[0], args[1]), service.Options{
			Months:     cfg.Cruce.Months,
			Persist:    persist,
			Force:      force,
			OutputPath: output,
		})
		if errors.Is(err, service.ErrAlreadyProcessed) {
			return fmt.Errorf("%w (use --force to reconcile again)", err)
		}
		if err != nil {
			return err
		}
		printStats(out)
		logger.Info("archive written", "path", output, "saved", out.Saved)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <ledger> <details_dir>",
	Short: "Check a ledger and its detail files without reconciling",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, store, closeStore, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		proc, err := service.FromConfig(cfg, logger, store)
		if err != nil {
			return err
		}
		v, err := proc.Validate(cmd.Context(), service.InputFromPaths(args[0], args[1]))
		if err != nil {
			return err
		}
		return yaml.NewEncoder(os.Stdout).Encode(v)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive.zip>",
	Short: "Show the trailer totals of a result archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		preset, err := cfg.Preset()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		summary, err := archive.ReadStatistics(data, preset.Control, cfg.Charset())
		if err != nil {
			return err
		}
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			return yaml.NewEncoder(os.Stdout).Encode(summary)
		}
		pp.Println(summary)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <details_dir>",
	Short: "Extract planilla headers from type I files into a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, store, closeStore, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		proc, err := service.FromConfig(cfg, logger, store)
		if err != nil {
			return err
		}
		in := service.InputFromPaths("", args[0])
		confirm, _ := cmd.Flags().GetBool("confirm")
		ex, err := proc.Extract(cmd.Context(), in.DetailDir, in.DetailFiles, confirm)
		if errors.Is(err, service.ErrNoCruce) {
			return fmt.Errorf("%w (use --confirm to extract anyway)", err)
		}
		if err != nil {
			return err
		}
		for _, f := range ex.Failures {
			logger.Warn("skipped planilla", "file", f.File, "err", f.Err)
		}
		records := cliFilters.apply(ex.Records)

		output, _ := cmd.Flags().GetString("output")
		w := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		columns := proc.Extractor().Columns()
		if filepath.Ext(output) == ".xlsx" {
			err = planilla.WriteXLSX(w, columns, records)
		} else {
			err = planilla.WriteCSV(w, columns, records, nil)
		}
		if err != nil {
			return err
		}
		proc.RecordExtraction(cmd.Context(), ex, len(in.DetailFiles), output)
		logger.Info("extracted planillas", "records", len(records), "as_of", ex.AsOf, "cruce", ex.HasCruce)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded reconciliations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, store, closeStore, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		proc, err := service.FromConfig(cfg, logger, store)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := proc.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%4d  %s  %-10s  %-24s  CA %d  CP %d  IA %d  IP %d  errores %d\n",
				r.ID, r.ProcessedAt.Format(time.DateTime), r.AsOf, r.LedgerName,
				r.Stats.CapitalCurrent, r.Stats.CapitalPrior, r.Stats.InterestCurrent, r.Stats.InterestPrior, r.Stats.ErrorCount)
		}
		return nil
	},
}

func loadPlan(cmd *cobra.Command, path string) (*executors.Executor, *plan.Plan, func(), error) {
	cfg, logger, store, closeStore, err := setup(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := plan.Load(path)
	if err != nil {
		closeStore()
		return nil, nil, nil, err
	}
	return executors.New(logger, cfg, store), p, closeStore, nil
}

var planCmd = &cobra.Command{
	Use:   "plan <plan_file>",
	Short: "Preview a YAML manifest of reconciliations (dry-run)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, p, closeStore, err := loadPlan(cmd, args[0])
		if err != nil {
			return err
		}
		defer closeStore()

		fmt.Printf("Plan preview for %s\n", args[0])
		p.Print(os.Stdout)
		report, err := exec.Plan(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Println()
		executors.Print(os.Stdout, report)
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <plan_file>",
	Short: "Run every pending reconciliation of a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exec, p, closeStore, err := loadPlan(cmd, args[0])
		if err != nil {
			return err
		}
		defer closeStore()

		report, err := exec.Apply(cmd.Context(), p)
		if report != nil {
			executors.Print(os.Stdout, report)
		}
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, store, closeStore, err := setup(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		proc, err := service.FromConfig(cfg, logger, store)
		if err != nil {
			return err
		}
		srv := server.New(cfg, logger, proc, importer.New(cfg.WorkDir, logger), session.New[*aportantes.Table](cfg.Session.TTL))
		return srv.Start(cfg.Server.Addr)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	config.AddFlags(rootCmd.PersistentFlags())

	cruceCmd.Flags().StringP("output", "o", "resultado_cruce.zip", "Result archive path")
	cruceCmd.Flags().Bool("persist", true, "Record the run in the history database")
	cruceCmd.Flags().Bool("force", false, "Reconcile a date that was already recorded")

	inspectCmd.Flags().Bool("yaml", false, "Print the summary as YAML")

	extractCmd.Flags().StringP("output", "o", "", "Output file, .xlsx or .csv (default csv on stdout)")
	extractCmd.Flags().Bool("confirm", false, "Extract dates that were never reconciled")
	extractCmd.Flags().StringVar(&cliFilters.nit, "nit", "", "Only planillas of this contributor")
	extractCmd.Flags().StringVar(&cliFilters.file, "file", "", "Only files whose name contains this text")

	historyCmd.Flags().Int("limit", history.DefaultLimit, "Maximum runs to list")

	serveCmd.Flags().String("addr", ":8000", "Listen address")
	serveCmd.Flags().Duration("session-ttl", 2*time.Hour, "Lifetime of uploaded contributor tables")

	rootCmd.AddCommand(cruceCmd, validateCmd, inspectCmd, extractCmd, historyCmd, planCmd, applyCmd, serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
