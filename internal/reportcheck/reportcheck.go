// Package reportcheck implements report-check: a one-shot command that runs a
// single dashboard fetch cycle against a collaborator API and reports how
// each section resolved.
package reportcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/okian/careconnect/internal/adapters/reportapi"
	"github.com/okian/careconnect/internal/config"
	"github.com/okian/careconnect/internal/domain/types"
	"github.com/okian/careconnect/internal/domain/viewmodel"
	"github.com/okian/careconnect/pkg/logger"
)

// ErrSectionsFailed is returned when at least one checked section failed.
var ErrSectionsFailed = errors.New("report sections failed")

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// settleGrace is added to the request timeout when waiting for the cycle.
const settleGrace = 2 * time.Second

type options struct {
	BaseURL   string
	Timeout   time.Duration
	Sections  []string
	Format    string
	LogLevel  string
	LogFormat string
}

// Run executes the check with args (args[0] is the program name).
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if err := Command(stdout, stderr).Run(ctx, args); err != nil {
		return goerr.Wrap(err, "report-check failed")
	}
	return nil
}

// Command builds the report-check CLI.
func Command(stdout, stderr io.Writer) *cli.Command {
	var opts options

	return &cli.Command{
		Name:      "report-check",
		Usage:     "Fetch every dashboard report once and print how each section resolved",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "base-url",
				Usage:       "Collaborator API root (default: api_base_url from config)",
				Destination: &opts.BaseURL,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "Per-request timeout (default: request_timeout_ms from config)",
				Destination: &opts.Timeout,
			},
			&cli.StringSliceFlag{
				Name:        "sections",
				Usage:       "Sections to fetch: appointments, no_show_rates, clinic_reports (default: enabled sections from config)",
				Destination: &opts.Sections,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Output format (table, json)",
				Value:       FormatTable,
				Destination: &opts.Format,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Category:    "Logging",
				Value:       "warn",
				Sources:     cli.EnvVars("CARECONNECT_LOG_LEVEL"),
				Destination: &opts.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format (auto, console, json, text)",
				Category:    "Logging",
				Value:       "auto",
				Sources:     cli.EnvVars("CARECONNECT_LOG_FORMAT"),
				Destination: &opts.LogFormat,
			},
		},
		Before: func(ctx context.Context, _ *cli.Command) (context.Context, error) {
			return ctx, configureLogger(opts, stderr)
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := applyConfig(ctx, cmd, &opts); err != nil {
				return err
			}
			return runCycle(ctx, opts, stdout)
		},
	}
}

// applyConfig fills every flag left unset from the service configuration,
// so the check targets the same collaborator the server would.
func applyConfig(ctx context.Context, cmd *cli.Command, opts *options) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load config")
	}
	if !cmd.IsSet("base-url") {
		opts.BaseURL = cfg.APIBaseURL
	}
	if !cmd.IsSet("timeout") {
		opts.Timeout = cfg.RequestTimeout()
	}
	if !cmd.IsSet("sections") {
		opts.Sections = sectionNames(cfg.Sections())
	}
	return nil
}

func configureLogger(opts options, stderr io.Writer) error { //nolint:gocritic // hugeParam: read once at startup
	format, err := logger.ParseFormat(opts.LogFormat)
	if err != nil {
		return goerr.Wrap(err, "invalid log format", goerr.V("format", opts.LogFormat))
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(stderr)); err != nil {
		return goerr.Wrap(err, "failed to initialize logging")
	}
	if err := logger.SetLevelString(opts.LogLevel); err != nil {
		return goerr.Wrap(err, "invalid log level", goerr.V("level", opts.LogLevel))
	}
	return nil
}

func runCycle(ctx context.Context, opts options, stdout io.Writer) error { //nolint:gocritic // hugeParam: read once at startup
	if opts.Format != FormatTable && opts.Format != FormatJSON {
		return goerr.New("invalid output format", goerr.V("format", opts.Format))
	}
	sections, err := parseSections(opts.Sections)
	if err != nil {
		return err
	}

	log := logger.Named("reportcheck")
	fetcher, err := reportapi.New(
		reportapi.WithBaseURL(opts.BaseURL),
		reportapi.WithTimeout(opts.Timeout),
		reportapi.WithLogger(log),
	)
	if err != nil {
		return goerr.Wrap(err, "invalid base url", goerr.V("base_url", opts.BaseURL))
	}

	vm := viewmodel.New(fetcher,
		viewmodel.WithSections(viewmodel.SectionsOf(sections)),
		viewmodel.WithLogger(log))
	if err := vm.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start delivery loop")
	}
	defer vm.Stop()

	cycleID := vm.Mount(ctx)
	log.Info(ctx, "check cycle started",
		logger.String("cycle_id", cycleID),
		logger.String("base_url", fetcher.BaseURL()))

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout+settleGrace)
	defer cancel()
	snap, err := vm.WaitSettled(waitCtx)
	if err != nil {
		return goerr.Wrap(err, "fetch cycle did not settle", goerr.V("cycle_id", cycleID))
	}

	report := newReport(fetcher.BaseURL(), snap)
	if err := report.write(stdout, opts.Format); err != nil {
		return goerr.Wrap(err, "failed to write report")
	}

	if failed := report.failed(); len(failed) > 0 {
		err := goerr.Wrap(ErrSectionsFailed, "one or more sections failed",
			goerr.V("sections", strings.Join(failed, ",")))
		log.Error(ctx, "check failed", logger.Error(err))
		return err
	}
	return nil
}

func parseSections(names []string) ([]types.Section, error) {
	out := make([]types.Section, 0, len(names))
	seen := make(map[types.Section]bool, len(names))
	for _, name := range names {
		s, err := types.ParseSection(name)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid section", goerr.V("section", name))
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, goerr.New("no sections selected")
	}
	return out, nil
}

func sectionNames(sections []types.Section) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = string(s)
	}
	return out
}

// sectionResult is one line of the check report.
type sectionResult struct {
	Section types.Section    `json:"section"`
	State   types.SliceState `json:"state"`
	Rows    int              `json:"rows"`
	Kind    string           `json:"kind"`
	Error   string           `json:"error,omitempty"`
}

type report struct {
	BaseURL  string          `json:"base_url"`
	CycleID  string          `json:"cycle_id"`
	Sections []sectionResult `json:"sections"`
}

func newReport(baseURL string, snap viewmodel.Snapshot) report { //nolint:gocritic // hugeParam: snapshots are values
	r := report{BaseURL: baseURL, CycleID: snap.CycleID}
	for _, s := range snap.Sections.List() {
		res := sectionResult{Section: s, State: snap.State(s), Rows: snap.Rows(s)}
		err := snap.Err(s)
		res.Kind = reportapi.ErrorKind(err)
		if err != nil {
			res.Error = err.Error()
		}
		r.Sections = append(r.Sections, res)
	}
	return r
}

func (r report) failed() []string {
	var out []string
	for _, s := range r.Sections {
		if s.State == types.StateFailed {
			out = append(out, string(s.Section))
		}
	}
	return out
}

func (r report) write(w io.Writer, format string) error {
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SECTION\tSTATE\tROWS\tRESULT\n")
	for _, s := range r.Sections {
		result := s.Kind
		if s.Error != "" {
			result = s.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Section, s.State, s.Rows, result)
	}
	return tw.Flush()
}
