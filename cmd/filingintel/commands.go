package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/filingintel/internal/compact"
	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/engine"
	"github.com/hurttlocker/filingintel/internal/ingest"
	"github.com/hurttlocker/filingintel/internal/mcp"
	"github.com/hurttlocker/filingintel/internal/provider/local"
)

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:           "filingintel",
		Short:         "Extract governance and event signals from regulatory filings",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `filingintel resolves filings for an issuer, extracts boolean flags,
governance sections, governance tables and keyword hits with verbatim
evidence, and assembles event window packs around a date.

Every extraction command prints the JSON envelope an MCP client would
receive. Run "filingintel serve" to expose the same operations over MCP
stdio.`,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.filingintel/config.yaml)")
	pf.StringVar(&g.provider, "provider", "", "document provider: local or edgar")
	pf.StringVar(&g.dbPath, "db", "", "local corpus path")
	pf.StringVar(&g.userAgent, "user-agent", "", "User-Agent for the edgar provider (name and email)")
	pf.StringVar(&g.catalogPath, "catalog", "", "YAML cue catalog overlay")
	pf.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newServeCmd(g),
		newFlagsCmd(g),
		newSectionsCmd(g),
		newTableCmd(g),
		newSearchCmd(g),
		newWindowCmd(g),
		newCatalogCmd(g),
		newImportCmd(g),
		newStatsCmd(g),
		newConfigCmd(g),
	)
	return root
}

// limitFlags binds the size controls. Only flags the user set are passed
// on, so unset ones keep the engine defaults.
type limitFlags struct {
	summaryOnly     bool
	maxSectionChars int
	maxHits         int
	contextChars    int
	windowDays      int
}

func (l *limitFlags) bind(cmd *cobra.Command, names ...string) {
	d := compact.DefaultLimits()
	f := cmd.Flags()
	for _, n := range names {
		switch n {
		case "summary-only":
			f.BoolVar(&l.summaryOnly, n, d.SummaryOnly, "omit excerpts and the headings index")
		case "max-section-chars":
			f.IntVar(&l.maxSectionChars, n, d.MaxSectionChars, "excerpt ceiling per section")
		case "max-hits":
			f.IntVar(&l.maxHits, n, d.MaxHits, "evidence snippets or keyword samples per item")
		case "context-chars":
			f.IntVar(&l.contextChars, n, d.ContextChars, "characters of context around a hit")
		case "window-days":
			f.IntVar(&l.windowDays, n, d.WindowDays, "days on each side of the event")
		}
	}
}

func (l *limitFlags) params(cmd *cobra.Command) compact.Params {
	var p compact.Params
	f := cmd.Flags()
	if f.Changed("summary-only") {
		p.SummaryOnly = &l.summaryOnly
	}
	if f.Changed("max-section-chars") {
		p.MaxSectionChars = &l.maxSectionChars
	}
	if f.Changed("max-hits") {
		p.MaxHits = &l.maxHits
	}
	if f.Changed("context-chars") {
		p.ContextChars = &l.contextChars
	}
	if f.Changed("window-days") {
		p.WindowDays = &l.windowDays
	}
	return p
}

func bindTarget(cmd *cobra.Command, t *engine.Target) {
	f := cmd.Flags()
	f.StringVar(&t.Identifier, "identifier", "", "issuer identifier, e.g. a CIK")
	f.StringVar(&t.DocumentID, "document", "", "explicit document id or accession number")
	f.StringVar(&t.Form, "form", "", "form type to resolve instead of the command default")
}

// runEnvelope opens the engine, runs op and prints its envelope. A failed
// envelope is printed and also returned as an error so the exit status is 1.
func runEnvelope(cmd *cobra.Command, g *globalOptions, op func(context.Context, *engine.Engine) engine.Envelope) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.close()

	env := op(cmd.Context(), a.engine)
	if err := writeJSON(cmd.OutOrStdout(), env); err != nil {
		return err
	}
	if !env.Success && env.Error != nil {
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newFlagsCmd(g *globalOptions) *cobra.Command {
	var req engine.FlagsRequest
	var limits limitFlags
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "Evaluate boolean flags against a filing (default: latest 8-K)",
		Example: `  filingintel flags --identifier 320193
  filingintel flags --document 0000320193-25-000010 --flag restatement_402`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Params = limits.params(cmd)
			return runEnvelope(cmd, g, func(ctx context.Context, e *engine.Engine) engine.Envelope {
				return e.Flags(ctx, req)
			})
		},
	}
	bindTarget(cmd, &req.Target)
	cmd.Flags().StringSliceVar(&req.Flags, "flag", nil, "flag names to evaluate (repeatable; default all)")
	limits.bind(cmd, "summary-only", "max-hits", "context-chars")
	return cmd
}

func newSectionsCmd(g *globalOptions) *cobra.Command {
	var req engine.SectionsRequest
	var limits limitFlags
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "Summarize the sections of a proxy statement or periodic report",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Params = limits.params(cmd)
			return runEnvelope(cmd, g, func(ctx context.Context, e *engine.Engine) engine.Envelope {
				return e.Sections(ctx, req)
			})
		},
	}
	bindTarget(cmd, &req.Target)
	cmd.Flags().StringSliceVar(&req.Sections, "section", nil, "section names (repeatable; default all)")
	limits.bind(cmd, "summary-only", "max-section-chars")
	return cmd
}

func newTableCmd(g *globalOptions) *cobra.Command {
	var req engine.TableRequest
	var limits limitFlags
	cmd := &cobra.Command{
		Use:       "table <kind>",
		Short:     "Extract a governance table from a proxy statement",
		Args:      cobra.ExactArgs(1),
		ValidArgs: tableKinds(),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Kind = args[0]
			req.Params = limits.params(cmd)
			return runEnvelope(cmd, g, func(ctx context.Context, e *engine.Engine) engine.Envelope {
				return e.Table(ctx, req)
			})
		},
	}
	bindTarget(cmd, &req.Target)
	limits.bind(cmd, "summary-only")
	return cmd
}

func tableKinds() []string {
	out := make([]string, len(cue.TableKinds))
	for i, k := range cue.TableKinds {
		out[i] = string(k)
	}
	return out
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var req engine.SearchRequest
	var limits limitFlags
	cmd := &cobra.Command{
		Use:   "search <term>...",
		Short: "Keyword search within one document (prefix a term with re: for a regex)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Terms = args
			req.Params = limits.params(cmd)
			return runEnvelope(cmd, g, func(ctx context.Context, e *engine.Engine) engine.Envelope {
				return e.Search(ctx, req)
			})
		},
	}
	bindTarget(cmd, &req.Target)
	limits.bind(cmd, "summary-only", "max-hits", "context-chars")
	return cmd
}

func newWindowCmd(g *globalOptions) *cobra.Command {
	var req engine.WindowRequest
	var limits limitFlags
	cmd := &cobra.Command{
		Use:   "window <identifier> <event-date>",
		Short: "Build an event window pack around a date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Identifier, req.EventDate = args[0], args[1]
			req.Params = limits.params(cmd)
			return runEnvelope(cmd, g, func(ctx context.Context, e *engine.Engine) engine.Envelope {
				return e.Window(ctx, req)
			})
		},
	}
	limits.bind(cmd, "summary-only", "max-section-chars", "max-hits", "context-chars", "window-days")
	return cmd
}

func newCatalogCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the cue catalog in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvelope(cmd, g, func(ctx context.Context, e *engine.Engine) engine.Envelope {
				return e.Catalog(ctx)
			})
		},
	}
}

func newServeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcp.NewServer(mcp.ServerConfig{Engine: a.engine, Version: version, Logger: a.logger.Named("mcp")})
			a.logger.Info("filingintel: serving MCP on stdio", zap.String("provider", a.settings.Provider))
			err = mcp.ServeStdio(ctx, srv, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var f local.Filing
	var date string
	var opts ingest.ImportOptions
	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import filing documents into the local corpus",
		Long: `Import one document with explicit metadata flags, or bulk-import a
directory or manifest. Without --identifier, metadata comes from a
manifest.{yaml,json,csv} or from file names shaped like
<identifier>_<form>_<YYYY-MM-DD>[_<accession>].htm ('+' for spaces in the form).`,
		Example: `  filingintel import --identifier 320193 --form 8-K --date 2025-03-04 ./8k.htm
  filingintel import --recursive ./filings
  filingintel import ./filings/manifest.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, err := g.resolve()
			if err != nil {
				return err
			}
			st, err := local.Open(settings.DBPath)
			if err != nil {
				return fmt.Errorf("opening corpus: %w", err)
			}
			defer st.Close()

			if f.Identifier == "" && f.Form == "" && date == "" {
				return runBulkImport(cmd, st, args[0], opts)
			}
			day, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("--date %q is not YYYY-MM-DD", date)
			}
			f.FilingDate = day
			if f.Identifier == "" || f.Form == "" {
				return fmt.Errorf("--identifier and --form are required")
			}
			id, err := st.ImportFile(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s (%s %s)\n",
				filepath.Base(args[0]), id, strings.ToUpper(f.Form), day.Format("2006-01-02"))
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.ID, "id", "", "document id (default: generated)")
	fl.StringVar(&f.Identifier, "identifier", "", "issuer identifier")
	fl.StringVar(&f.Form, "form", "", "form type, e.g. 8-K, DEF 14A, EX-99.1")
	fl.StringVar(&date, "date", "", "filing date YYYY-MM-DD")
	fl.StringVar(&f.Accession, "accession", "", "accession number")
	fl.StringVar(&f.URL, "url", "", "source URL (default: file URL of path)")
	fl.StringVar(&f.ContentType, "content-type", "", "html or text (default: sniffed)")
	fl.BoolVarP(&opts.Recursive, "recursive", "r", false, "descend into subdirectories")
	fl.BoolVarP(&opts.DryRun, "dry-run", "n", false, "validate without writing")
	return cmd
}

func runBulkImport(cmd *cobra.Command, st *local.Store, path string, opts ingest.ImportOptions) error {
	out := cmd.OutOrStdout()
	if opts.DryRun {
		fmt.Fprintln(out, "Dry run mode: no changes will be written")
	}
	opts.ProgressFn = func(current, total int, file string) {
		fmt.Fprintf(out, "  [%d/%d] %s\n", current, total, file)
	}
	res, err := ingest.NewEngine(st).ImportPath(cmd.Context(), path, opts)
	if err != nil {
		return err
	}
	fmt.Fprint(out, ingest.FormatImportResult(res))
	if res.FilesImported == 0 && len(res.Errors) > 0 {
		return fmt.Errorf("nothing imported from %s", path)
	}
	return nil
}

func newStatsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus size and cache counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open()
			if err != nil {
				return err
			}
			defer a.close()
			stats, err := a.stats(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newConfigCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, _, err := g.resolve()
			if werr := writeJSON(cmd.OutOrStdout(), resolved); werr != nil {
				return werr
			}
			return err
		},
	}
}
