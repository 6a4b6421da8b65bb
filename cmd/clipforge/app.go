package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/clipforge/clipforge/internal/api"
	"github.com/clipforge/clipforge/internal/backend"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/controller"
	"github.com/clipforge/clipforge/internal/formats"
	"github.com/clipforge/clipforge/internal/logger"
	"github.com/clipforge/clipforge/internal/mediainfo"
	"github.com/clipforge/clipforge/internal/poller"
	"github.com/clipforge/clipforge/internal/report"
	"github.com/clipforge/clipforge/internal/view"
	"github.com/clipforge/clipforge/internal/websocket"
)

const usage = `Usage: clipforge [global flags] <command> [flags] [args]

Commands:
  compress  [-codec libx264] FILE...            compress videos and wait for the results
  formats   URL                                  list the downloadable formats of a video
  download  -format ID URL                       download one format of a video
  split     -start S -end S [-duration S] FILE   cut a segment out of a video
  ops       [flags] FILE                         run video operations (background, voice)

Global flags:
`

// app holds everything one command needs.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	client *backend.Client
	ctrl   *controller.Controller
	html   *view.HTML
	prober *mediainfo.Service
	output report.Format
	stdout io.Writer

	dashboard *api.Server
	hub       *websocket.Hub
	hubCancel context.CancelFunc
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("clipforge", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	configPath := global.String("config", "", "Path to config file")
	dashboard := global.Bool("dashboard", false, "Serve the live dashboard while the command runs")
	output := global.String("output", "text", "Result format: text, json or yaml")
	fetch := global.Bool("fetch", false, "Save produced files into downloads.dir")
	backendURL := global.String("backend", "", "Backend base URL (overrides backend.base_url)")

	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	format, err := report.ParseFormat(*output)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if *dashboard {
		cfg.Dashboard.Enabled = true
	}
	if *fetch {
		cfg.Downloads.Fetch = true
	}
	if *backendURL != "" {
		cfg.Backend.BaseURL = *backendURL
	}

	a := newApp(cfg, format, stdout, stderr)
	defer a.log.Close()

	if cfg.Dashboard.Enabled {
		a.startDashboard(ctx)
		defer a.stopDashboard()
	}

	cmd, cmdArgs := global.Arg(0), global.Args()[1:]
	a.log.Debug().Str("command", cmd).Strs("args", cmdArgs).Str("backend", cfg.Backend.BaseURL).Msg("Running command")

	var res any
	switch cmd {
	case "compress":
		res, err = a.compress(ctx, cmdArgs, stderr)
	case "formats":
		res, err = a.formats(ctx, cmdArgs, stderr)
	case "download":
		res, err = a.download(ctx, cmdArgs, stderr)
	case "split":
		res, err = a.split(ctx, cmdArgs, stderr)
	case "ops":
		res, err = a.ops(ctx, cmdArgs, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		global.Usage()
		return 2
	}

	if errors.Is(err, flag.ErrHelp) || errors.Is(err, errUsage) {
		return 2
	}
	if err != nil {
		return 1
	}

	if err := report.Write(stdout, a.output, res); err != nil {
		a.log.Error().Err(err).Msg("Failed to write report")
		return 1
	}

	if cfg.Dashboard.Enabled && ctx.Err() == nil {
		a.log.Info().Str("address", cfg.Dashboard.Address()).Msg("Dashboard still serving, press Ctrl-C to exit")
		<-ctx.Done()
	}
	return 0
}

func newApp(cfg *config.Config, format report.Format, stdout, stderr io.Writer) *app {
	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		Output:          stderr,
		EnableStreaming: cfg.Dashboard.Enabled,
		BufferSize:      1000,
	})

	client := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout(),
	}, log.WithComponent("backend"))

	a := &app{
		cfg:    cfg,
		log:    log,
		client: client,
		html:   view.NewHTML(),
		output: format,
		stdout: stdout,
		prober: mediainfo.NewService(mediainfo.Config{
			FFprobePath:   cfg.Probe.FFprobePath,
			MediaInfoPath: cfg.Probe.MediaInfoPath,
		}, log.Logger),
	}

	// Structured output keeps stdout clean for the report.
	bindings := view.Multi{a.html}
	if format == report.FormatText {
		bindings = append(bindings, view.NewTerminal(stdout))
	}

	if cfg.Dashboard.Enabled {
		hub := websocket.NewHub(log.Logger)
		a.hub = hub
		hub.SetSnapshotHandler(func() any { return a.html.Snapshot() })
		bindings = append(bindings, view.NewBroadcast(hub, log.Logger))
		if b := log.Broadcaster(); b != nil {
			b.SetHub(hub)
		}

		logFile := ""
		if cfg.Logging.Path != "" {
			logFile = filepath.Join(cfg.Logging.Path, "clipforge.log")
		}
		var logs api.LogsProvider
		if b := log.Broadcaster(); b != nil {
			logs = b
		}
		a.dashboard = api.NewServer(api.Deps{
			View:         a.html,
			Hub:          hub,
			Logs:         logs,
			LogFilePath:  logFile,
			AllowedHosts: allowedHosts(cfg.Dashboard.Host),
		}, log.Logger)
	}

	a.ctrl = controller.New(client, bindings, controller.Config{
		Poll: poller.Config{
			Interval:    cfg.Poll.Interval(),
			MaxFailures: cfg.Poll.MaxFailures,
		},
		Fetch:       cfg.Downloads.Fetch,
		DownloadDir: cfg.Downloads.Dir,
	}, log.Logger)

	return a
}

// allowedHosts limits loopback dashboards to loopback Host headers.
func allowedHosts(host string) []string {
	switch host {
	case "127.0.0.1", "localhost", "::1":
		return []string{"127.0.0.1", "localhost", "[::1]"}
	}
	return nil
}

func (a *app) startDashboard(ctx context.Context) {
	hubCtx, cancel := context.WithCancel(ctx)
	a.hubCancel = cancel
	go a.hub.Run(hubCtx)

	addr := a.cfg.Dashboard.Address()
	go func() {
		if err := a.dashboard.Start(addr); err != nil {
			a.log.Error().Err(err).Str("address", addr).Msg("Dashboard stopped")
		}
	}()
	fmt.Fprintf(a.stdoutForInfo(), "Dashboard: http://%s/\n", addr)
}

func (a *app) stopDashboard() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.dashboard.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("Dashboard shutdown error")
	}
	a.hubCancel()
}

// stdoutForInfo is where human notices go; structured output reserves
// stdout for the report.
func (a *app) stdoutForInfo() io.Writer {
	if a.output == report.FormatText {
		return a.stdout
	}
	return io.Discard
}

var errUsage = errors.New("usage")

func newFlagSet(name, synopsis string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: clipforge %s %s\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) compress(ctx context.Context, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("compress", "[-codec libx264] FILE...", stderr)
	codec := fs.String("codec", controller.DefaultCodec, "Video codec (libx264, libx265, libvpx-vp9)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.ctrl.Compress(ctx, fs.Args(), *codec)
}

func (a *app) formats(ctx context.Context, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("formats", "URL", stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	session := &formats.Session{}
	if _, err := a.ctrl.FetchFormats(ctx, session, strings.Join(fs.Args(), " ")); err != nil {
		return nil, err
	}
	return session.Info, nil
}

func (a *app) download(ctx context.Context, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("download", "-format ID URL", stderr)
	formatID := fs.String("format", "", "Format id as listed by the formats command")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	session := &formats.Session{}
	sel, err := a.ctrl.FetchFormats(ctx, session, strings.Join(fs.Args(), " "))
	if err != nil {
		return nil, err
	}
	if *formatID == "" {
		return a.ctrl.DownloadSelected(ctx, session)
	}
	return a.ctrl.ChooseFormat(ctx, sel, session, *formatID)
}

func (a *app) split(ctx context.Context, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("split", "-start S -end S [-duration S] FILE", stderr)
	start := fs.Float64("start", 0, "Segment start in seconds")
	end := fs.Float64("end", -1, "Segment end in seconds (default: end of video)")
	duration := fs.Float64("duration", 0, "Video length in seconds (default: probed)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errUsage
	}
	video := fs.Arg(0)

	rng := a.ctrl.NewRange(ctx, a.prober, video, *duration)
	endAt := *end
	if endAt < 0 {
		if math.IsInf(rng.Duration(), 1) {
			fmt.Fprintln(stderr, "split: cannot read the video length; pass -end or -duration")
			return nil, errUsage
		}
		_, endAt = rng.Range()
	}
	rng.Set(*start, endAt)

	return a.ctrl.Split(ctx, video, rng)
}

func (a *app) ops(ctx context.Context, args []string, stderr io.Writer) (any, error) {
	fs := newFlagSet("ops", "[flags] FILE", stderr)
	var threshold *float64
	fs.Func("threshold", "Chroma key threshold between 0 and 1", func(v string) error {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		threshold = &t
		return nil
	})
	color := fs.String("bg-color", "", "Background color, e.g. #00ff00")
	bgImage := fs.String("bg-image", "", "Background image file")
	bgVideo := fs.String("bg-video", "", "Background video file")
	preImage := fs.String("predefined-bg-image", "", "Name of a backend background image")
	preVideo := fs.String("predefined-bg-video", "", "Name of a backend background video")
	removeVoice := fs.Bool("remove-voice", false, "Strip the voice track")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errUsage
	}

	req := backend.VideoOpsRequest{
		Video:             fs.Arg(0),
		BackgroundColor:   *color,
		BackgroundImage:   *bgImage,
		BackgroundVideo:   *bgVideo,
		PredefinedBgImage: *preImage,
		PredefinedBgVideo: *preVideo,
		RemoveVoice:       *removeVoice,
		Threshold:         threshold,
	}
	return a.ctrl.ProcessVideo(ctx, req)
}
