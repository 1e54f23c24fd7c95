package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/make-42/tasogare/internal/config"
	"github.com/make-42/tasogare/internal/orbit"
	"github.com/make-42/tasogare/internal/sky"
	"github.com/make-42/tasogare/internal/tle"
	"github.com/make-42/tasogare/internal/transform"
)

type options struct {
	tlePath string
	backend string
	limit   int
	at      string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "diag [satellite names...]",
		Short: "Scan each satellite's next visible window once and print it",
		Long: `diag loads the configured TLE file, runs one window scan per satellite
from the given instant and prints rise time, sample count, span and the
sub-satellite point and Sun elevation at rise. Observer and scan settings come from the
TASOGARE_* environment, as for the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.tlePath, "tle", "", "TLE file (default: TASOGARE_TLE_PATH)")
	flags.StringVar(&opts.backend, "backend", "", "propagator backend: sgp4 or native (default: TASOGARE_BACKEND)")
	flags.IntVar(&opts.limit, "limit", 20, "scan at most this many satellites, 0 for all")
	flags.StringVar(&opts.at, "at", "", "scan start as RFC 3339 (default: now)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log warnings from loading and propagation")
	return cmd
}

func run(out, errOut io.Writer, opts options, names []string) error {
	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewJSONHandler(errOut, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}
	if opts.tlePath != "" {
		cfg.TLEPath = opts.tlePath
	}
	if opts.backend != "" {
		b, err := orbit.ParseBackend(opts.backend)
		if err != nil {
			return err
		}
		cfg.Backend = b
	}

	start := time.Now().UTC()
	if opts.at != "" {
		start, err = time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	ds, err := tle.LoadFile(cfg.TLEPath, logger)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		names = cfg.Satellites
	}
	entries, missing := ds.Select(names)
	for _, name := range missing {
		fmt.Fprintf(errOut, "not in %s: %s\n", cfg.TLEPath, name)
	}
	if opts.limit > 0 && len(entries) > opts.limit {
		entries = entries[:opts.limit]
	}

	fmt.Fprintf(out, "Loaded %d TLE entries from %s (epochs %s .. %s)\n",
		len(ds.Satellites), ds.Source,
		ds.EpochRange.Min.Format(time.RFC3339), ds.EpochRange.Max.Format(time.RFC3339))
	fmt.Fprintf(out, "Observer %.4f, %.4f, %.0f m; scan start %s; backend %s\n\n",
		cfg.Latitude, cfg.Longitude, cfg.Altitude, start.Format(time.RFC3339), cfg.Backend)

	st := cfg.Sky()
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tNORAD\tRISE\tSAMPLES\tSPAN\tSUB-POINT AT RISE\tSUN EL\tNOTE")

	found := 0
	for _, entry := range entries {
		line, ok := diagnose(entry, start, st)
		if ok {
			found++
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d of %d satellites have a window within %s\n", found, len(entries), cfg.TrailMaxForecast)
	return nil
}

// diagnose scans one satellite and formats its table row.
func diagnose(entry tle.TLEEntry, start time.Time, st sky.Settings) (string, bool) {
	row := func(rise, samples, span, sub, sun, note string) string {
		return fmt.Sprintf("%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s", entry.Name, entry.NORADID, rise, samples, span, sub, sun, note)
	}

	el, err := orbit.NewElements(entry)
	if err != nil {
		return row("-", "-", "-", "-", "-", err.Error()), false
	}
	prop, err := orbit.New(el, st.Backend)
	if err != nil {
		return row("-", "-", "-", "-", "-", err.Error()), false
	}

	pass := sky.NewScanner(el, prop, st).Scan(start)
	note := ""
	if pass.Err != nil {
		note = pass.Err.Error()
	}
	if !pass.Found() {
		if note == "" {
			note = "no window, next scan " + pass.End.Format(time.RFC3339)
		}
		return row("-", "0", "-", "-", "-", note), false
	}

	sub := "-"
	if teme, err := prop.Propagate(el.MinutesSinceEpoch(pass.Rise)); err == nil {
		ecef := transform.TEMEToECEF(teme, pass.Rise)
		gp := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
		sub = fmt.Sprintf("%.2f, %.2f @ %.0f km", gp.LatDeg, gp.LonDeg, gp.AltM/1000)
	}

	sun := transform.SunLookAngles(pass.Rise, st.Observer)
	if note == "" && sun.ElevationDeg() > -6 {
		note = "sky not dark at rise"
	}

	return row(
		pass.Rise.Format(time.RFC3339),
		fmt.Sprint(len(pass.Samples)),
		pass.Samples.Span().String(),
		sub,
		fmt.Sprintf("%.1f", sun.ElevationDeg()),
		note,
	), true
}
