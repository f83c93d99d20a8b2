package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/sleeve/pkg/config"
	"github.com/chazu/sleeve/pkg/logging"
	"github.com/chazu/sleeve/pkg/store"
)

var (
	configPath string
	logLevel   string
	dryRun     bool

	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "sleeve",
		Short: "Cut openings where ducts and pipes pass through walls",
		Long: `sleeve reads a building model script, casts every straight duct and
pipe of the MEP model against the walls of the host and linked models, and
places one sized opening at each crossing.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}

	placeCmd = &cobra.Command{
		Use:   "place [model]",
		Short: "Place openings at every duct and pipe wall crossing",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPlace,
	}

	checkCmd = &cobra.Command{
		Use:   "check [model]",
		Short: "Evaluate and validate a model script without placing anything",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCheck,
	}

	openingsCmd = &cobra.Command{
		Use:   "openings",
		Short: "List the openings placed so far",
		Args:  cobra.NoArgs,
		RunE:  runOpenings,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	placeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "locate penetrations without placing openings")

	rootCmd.AddCommand(placeCmd, checkCmd, openingsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and sets up logging for every command.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}

	name := cfg.Log.Level
	if logLevel != "" {
		name = logLevel
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return err
	}
	logger = logging.New(logging.Config{
		Level:   level,
		Service: "sleeve",
		JSON:    cfg.Log.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	return nil
}

// readModel returns the script named on the command line or in the config.
func readModel(args []string) (string, error) {
	path := cfg.Model
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return "", errors.New("no model script given and none configured")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read model: %w", err)
	}
	return string(src), nil
}

func openStore() (*store.Store, error) {
	return store.Open(store.Options{
		Dir:      cfg.Store.Dir,
		InMemory: cfg.Store.InMemory,
		Logger:   logger,
	})
}

func runPlace(cmd *cobra.Command, args []string) error {
	source, err := readModel(args)
	if err != nil {
		return err
	}

	var st *store.Store
	if !dryRun {
		if st, err = openStore(); err != nil {
			return err
		}
		defer st.Close()
	}

	res, err := NewApp(cfg, st, logger).Place(cmd.Context(), source, dryRun)
	if err != nil {
		return reportError(cmd.ErrOrStderr(), err)
	}

	printPlaceResult(cmd.OutOrStdout(), res)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	source, err := readModel(args)
	if err != nil {
		return err
	}

	res, err := NewApp(cfg, nil, logger).Check(source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, e := range res.Errors {
		fmt.Fprintf(out, "error: %s\n", e.Error())
	}
	for _, e := range res.Validation.Errors {
		fmt.Fprintln(out, e.Error())
	}
	for _, w := range res.Validation.Warnings {
		fmt.Fprintln(out, w.Error())
	}
	if !res.OK() {
		return errors.New("model check failed")
	}
	fmt.Fprintf(out, "ok: %d documents\n", len(res.Project.Documents))
	return nil
}

func runOpenings(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	openings, err := st.Openings()
	if err != nil {
		return err
	}
	printOpenings(cmd.OutOrStdout(), openings, cfg)
	return nil
}

// reportError prints user errors as a titled message and passes them on.
func reportError(w io.Writer, err error) error {
	var ue *UserError
	if errors.As(err, &ue) {
		fmt.Fprintf(w, "%s\n  %s\n", ue.Title, ue.Message)
	}
	return err
}

func printPlaceResult(w io.Writer, res *PlaceResult) {
	for _, r := range res.Skipped() {
		fmt.Fprintf(w, "skipped %s %s: %v\n", r.Element.Kind, r.Element.ID, r.Err)
	}
	if res.DryRun {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tHOST\tX\tY\tZ\tSIZE")
		for _, r := range res.Results {
			for _, pt := range r.Points {
				fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\n",
					r.Element.ID, pt.Surface, pt.Position.X, pt.Position.Y, pt.Position.Z, pt.SourceDiameter)
			}
		}
		tw.Flush()
		fmt.Fprintf(w, "%d penetrations found (dry run)\n", res.Penetrations())
		return
	}
	fmt.Fprintf(w, "%d openings placed\n", len(res.Openings))
}

func printOpenings(w io.Writer, openings []*store.Opening, cfg *config.Config) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHOST\tLEVEL\tSOURCE\tX\tY\tZ\tWIDTH\tHEIGHT")
	for _, o := range openings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\n",
			o.ID, o.Host, o.Level, o.Source,
			o.Position.X, o.Position.Y, o.Position.Z,
			o.Params[cfg.WidthParam], o.Params[cfg.HeightParam])
	}
	tw.Flush()
}
