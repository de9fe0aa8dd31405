package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/motorctl/internal/config"
	"github.com/san-kum/motorctl/internal/control"
	"github.com/san-kum/motorctl/internal/hostlink"
	"github.com/san-kum/motorctl/internal/logx"
	"github.com/san-kum/motorctl/internal/metrics"
	"github.com/san-kum/motorctl/internal/optim"
	"github.com/san-kum/motorctl/internal/rig"
	"github.com/san-kum/motorctl/internal/storage"
	"github.com/san-kum/motorctl/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logJSON  bool

	configFile string
	preset     string
	duration   time.Duration
	clockKind  string
	stream     bool
	streamFrom string
	save       bool
	watch      bool
	noPlot     bool

	port        string
	baud        int
	readTimeout time.Duration
	listPorts   bool
	sentinels   []string
	setpoint    float64
	band        float64
	captureSave bool

	exportFormat string
	exportOut    string

	tuneMotor  string
	kpGrid     []float64
	kiGrid     []float64
	tuneMetric string
	workers    int
	top        int
)

var metricKeys = []string{"iae", "mae", "overshoot", "final_error", "in_band"}

func main() {
	rootCmd := &cobra.Command{
		Use:           "motorctl",
		Short:         "cooperative motor control rig",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".motorctl", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default from config, else info)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log JSON instead of console text")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the rig until the duration elapses or it is interrupted",
		Args:  cobra.NoArgs,
		RunE:  runRig,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().DurationVar(&duration, "time", 0, "run duration, 0 keeps the configured one")
	runCmd.Flags().StringVar(&clockKind, "clock", "", "clock: sim or wall")
	runCmd.Flags().BoolVar(&stream, "stream", false, "print completion and data lines in diagnostic stream format")
	runCmd.Flags().StringVar(&streamFrom, "motor", "", "motor whose data lines --stream prints (default: first)")
	runCmd.Flags().BoolVar(&save, "save", false, "save each motor's response as a session")
	runCmd.Flags().BoolVar(&watch, "watch", false, "reload gains when the config file changes")
	runCmd.Flags().BoolVar(&noPlot, "no-plot", false, "skip response plots")

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "capture a response from a remote rig over a serial port",
		Args:  cobra.NoArgs,
		RunE:  captureRemote,
	}
	captureCmd.Flags().StringVar(&port, "port", "", "serial device")
	captureCmd.Flags().IntVar(&baud, "baud", hostlink.DefaultBaud, "baud rate")
	captureCmd.Flags().DurationVar(&readTimeout, "read-timeout", hostlink.DefaultReadTimeout, "serial read timeout")
	captureCmd.Flags().BoolVar(&listPorts, "list-ports", false, "list serial devices and exit")
	captureCmd.Flags().StringSliceVar(&sentinels, "sentinel", hostlink.DefaultSentinels, "completion lines to wait for")
	captureCmd.Flags().Float64Var(&setpoint, "setpoint", 0, "setpoint used for metrics and plot")
	captureCmd.Flags().Float64Var(&band, "band", config.DefaultSettleBand, "settle tolerance in counts")
	captureCmd.Flags().BoolVar(&captureSave, "save", true, "save the captured session")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list sessions",
		RunE:  listSessions,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [session_id]",
		Short: "plot a session",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSession,
	}

	exportCmd := &cobra.Command{
		Use:   "export [session_id]",
		Short: "export a session",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSession,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json or lines")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to a file instead of stdout")

	presetsCmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "list presets, or print one as yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search Kp and Ki on the simulated rig",
		Args:  cobra.NoArgs,
		RunE:  tuneGains,
	}
	tuneCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	tuneCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	tuneCmd.Flags().DurationVar(&duration, "time", 0, "simulated duration per trial, 0 keeps the configured one")
	tuneCmd.Flags().StringVar(&tuneMotor, "motor", "", "motor to score (default: first)")
	tuneCmd.Flags().Float64SliceVar(&kpGrid, "kp", []float64{0.05, 0.1, 0.2, 0.4}, "Kp values")
	tuneCmd.Flags().Float64SliceVar(&kiGrid, "ki", []float64{0, 0.01, 0.05}, "Ki values")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "iae", "metric to rank by (in_band is maximized, the rest minimized)")
	tuneCmd.Flags().IntVar(&workers, "workers", 0, "concurrent trials (default: GOMAXPROCS)")
	tuneCmd.Flags().IntVar(&top, "top", 5, "results to show")

	rootCmd.AddCommand(runCmd, captureCmd, listCmd, plotCmd, exportCmd, presetsCmd, tuneCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfgLevel string) zerolog.Logger {
	level := logLevel
	if level == "" {
		level = cfgLevel
	}
	return logx.New(os.Stderr, level, !logJSON)
}

func loadConfig() (*config.Config, string, error) {
	switch {
	case preset != "" && configFile != "":
		return nil, "", errors.New("--preset and --config are mutually exclusive")
	case preset != "":
		cfg := config.GetPreset(preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		return cfg, "preset:" + preset, nil
	case configFile != "":
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, "config:" + configFile, nil
	default:
		return config.DefaultConfig(), "default", nil
	}
}

func runRig(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if clockKind != "" {
		cfg.Clock = clockKind
	}
	if watch {
		if configFile == "" {
			return errors.New("--watch needs --config")
		}
		cfg.Tuner.Enabled = true
	}

	log := newLogger(cfg.Log.Level)

	clock, err := rig.NewClock(cfg.Clock)
	if err != nil {
		return err
	}
	opts := []rig.Option{rig.WithLogger(log)}
	if stream {
		opts = append(opts, rig.WithDoneWriter(os.Stdout))
	}
	r, err := rig.Build(cfg, clock, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		if err := config.Watch(ctx, configFile, log, func(c *config.Config) { r.Apply(c) }); err != nil {
			return err
		}
	}

	runErr := r.Run(ctx)
	reports := r.Reports()

	if stream {
		// a host capture expects one monotonic series
		rep, ok := rig.SelectReport(reports, streamFrom)
		if !ok {
			return fmt.Errorf("unknown motor: %s", streamFrom)
		}
		if err := storage.ExportLines(os.Stdout, rep.Samples); err != nil {
			return err
		}
	} else {
		printSummary(os.Stdout, r, reports)
	}

	if save {
		if err := saveReports(cfg, source, reports, log); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("run ended with task faults: %w", runErr)
	}
	return nil
}

func printSummary(w io.Writer, r *rig.Rig, reports []rig.Report) {
	fmt.Fprintln(w, viz.Title.Render("tasks"))
	fmt.Fprintln(w, viz.TaskTable(r.Scheduler().Snapshot()))
	fmt.Fprintf(w, "ticks %d  idle %d  clock %s\n", r.Scheduler().Ticks(), r.Scheduler().Idle(), r.Clock().Now())
	fmt.Fprintln(w, viz.Separator(viz.PlotWidth))

	fmt.Fprintln(w, viz.Title.Render("queues and shares"))
	for _, line := range r.Describe() {
		fmt.Fprintln(w, "  "+line)
	}
	fmt.Fprintln(w)

	for _, t := range r.Scheduler().Tasks() {
		if t.Trace() != nil {
			fmt.Fprintln(w, viz.BoxWithTitle("trace "+t.Name(), viz.TraceTable(t.Trace())))
		}
	}

	for _, rep := range reports {
		status := "not settled"
		if rep.Settled {
			status = fmt.Sprintf("settled at %s", rep.SettledAt)
		}
		if rep.Halted {
			status += ", halted"
		}
		body := fmt.Sprintf("samples %d  lost %d  %s\n%s",
			len(rep.Samples), rep.Lost, status, viz.Metrics(metricKeys, rep.Metrics))
		if rep.Err != nil {
			body += "\n" + viz.StatusDead.Render(rep.Err.Error())
		}
		fmt.Fprintln(w, viz.BoxWithTitle(fmt.Sprintf("%s (setpoint %g)", rep.Motor, rep.Params.Setpoint), body))
		if !noPlot {
			fmt.Fprintln(w, viz.PlotResponse(rep.Motor, rep.Samples, rep.Params.Setpoint))
		}
		fmt.Fprintln(w)
	}
}

func saveReports(cfg *config.Config, source string, reports []rig.Report, log zerolog.Logger) error {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	for _, rep := range reports {
		id, err := st.Save(storage.SessionMetadata{
			Source:   source,
			Motor:    rep.Motor,
			Clock:    cfg.Clock,
			Setpoint: rep.Params.Setpoint,
			Kp:       rep.Params.Kp,
			Ki:       rep.Params.Ki,
			PeriodMs: float64(rep.Period) / float64(time.Millisecond),
			Policy:   rep.Policy,
			Dropped:  rep.Dropped,
			Settled:  rep.Settled,
			Metrics:  rep.Metrics,
		}, rep.Samples)
		if err != nil {
			return fmt.Errorf("save %s: %w", rep.Motor, err)
		}
		log.Info().Str("motor", rep.Motor).Str("session", id).Msg("session saved")
	}
	return nil
}

func captureRemote(cmd *cobra.Command, args []string) error {
	if listPorts {
		ports, err := hostlink.Ports()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}
	if port == "" {
		return errors.New("--port is required")
	}

	log := newLogger("info")

	p, err := hostlink.OpenPort(port, baud, readTimeout)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link := hostlink.New(p, hostlink.WithLogger(log), hostlink.WithSentinels(sentinels...))
	samples, err := link.Session(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("samples", len(samples)).Int("skipped", link.Skipped()).Msg("capture finished")

	m := metrics.Evaluate(samples, metrics.Standard(setpoint, band)...)
	fmt.Println(viz.Metrics(metricKeys, m))
	fmt.Println(viz.PlotResponse(port, samples, setpoint))

	if !captureSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(storage.SessionMetadata{
		Source:   "capture:" + port,
		Motor:    "remote",
		Setpoint: setpoint,
		Metrics:  m,
	}, samples)
	if err != nil {
		return err
	}
	fmt.Println("saved session", id)
	return nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no sessions found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tMOTOR\tTIME\tSETPOINT\tKP\tKI\tSAMPLES\tIAE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%g\t%g\t%d\t%.1f\n",
			run.ID,
			run.Source,
			run.Motor,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Setpoint,
			run.Kp,
			run.Ki,
			run.Samples,
			run.Metrics["iae"],
		)
	}

	return w.Flush()
}

func loadSession(id string) (*storage.SessionMetadata, []control.Sample, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	samples, err := st.LoadSamples(id)
	if err != nil {
		return nil, nil, err
	}
	return meta, samples, nil
}

func plotSession(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadSession(args[0])
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("session: %s\n", meta.ID)
	fmt.Printf("source: %s\n", meta.Source)
	fmt.Printf("samples: %d\n", len(samples))
	fmt.Println(viz.Metrics(metricKeys, meta.Metrics))
	fmt.Println()

	_, values := control.Series(samples)
	fmt.Println(viz.Sparkline(values, viz.PlotWidth))
	fmt.Println(viz.PlotResponse(meta.Motor, samples, meta.Setpoint))
	return nil
}

func exportSession(cmd *cobra.Command, args []string) error {
	meta, samples, err := loadSession(args[0])
	if err != nil {
		return err
	}
	switch strings.ToLower(exportFormat) {
	case "json":
		if exportOut != "" {
			return storage.ExportJSONFile(exportOut, *meta, samples)
		}
		return storage.ExportJSON(os.Stdout, *meta, samples)
	case "lines":
		if exportOut != "" {
			return storage.ExportLinesFile(exportOut, samples)
		}
		return storage.ExportLines(os.Stdout, samples)
	default:
		return fmt.Errorf("unknown format %q (json, lines)", exportFormat)
	}
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if tuneMotor == "" {
		tuneMotor = cfg.Motors[0].Task.Name
	}
	if _, ok := cfg.Motor(tuneMotor); !ok {
		return fmt.Errorf("unknown motor: %s", tuneMotor)
	}

	log := newLogger(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trial := func(ctx context.Context, params map[string]float64) (map[string]float64, error) {
		c := cfg.Clone()
		mc, _ := c.Motor(tuneMotor)
		for name, v := range params {
			p, err := mc.Controller.Set(name, v)
			if err != nil {
				return nil, err
			}
			mc.Controller = p
		}
		return rig.Evaluate(ctx, c, tuneMotor)
	}

	g := optim.NewGridSearch([]string{"Kp", "Ki"}, [][]float64{kpGrid, kiGrid}).WithWorkers(workers)
	if metrics.HigherIsBetter(tuneMetric) {
		g.WithGoal(optim.Maximize)
	}
	log.Info().Int("trials", len(kpGrid)*len(kiGrid)).Str("motor", tuneMotor).Msg("tuning")
	results, err := g.Search(ctx, trial, tuneMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "RANK\tKP\tKI\t%s\n", strings.ToUpper(tuneMetric))
	for i, res := range results {
		if i >= top {
			break
		}
		val := strconv.FormatFloat(res.Value, 'f', 2, 64)
		if res.Err != nil {
			val = "error: " + res.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%g\t%g\t%s\n", i+1, res.Params["Kp"], res.Params["Ki"], val)
	}
	return w.Flush()
}

func showPresets(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, name := range config.ListPresets() {
			fmt.Println(name)
		}
		return nil
	}
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
