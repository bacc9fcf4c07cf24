package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	cfgpkg "github.com/veranemoloko/media-taskdesk/internal/config"
	"github.com/veranemoloko/media-taskdesk/internal/domain"
	"github.com/veranemoloko/media-taskdesk/internal/eventloop"
	"github.com/veranemoloko/media-taskdesk/internal/gateway"
	"github.com/veranemoloko/media-taskdesk/internal/repository"
	"github.com/veranemoloko/media-taskdesk/internal/service"
	"github.com/veranemoloko/media-taskdesk/internal/storage"
	"github.com/veranemoloko/media-taskdesk/internal/theme"
	"github.com/veranemoloko/media-taskdesk/internal/worker"
)

const usage = `usage: taskctl <command> [flags]

commands:
  submit     -url URL             process one video URL
  audio      -file PATH           upload and process a local audio file
  batch      -file PATH|-         process newline-separated URLs
  subtitle   -video PATH          generate subtitles for a local video
  multipart  -url URL -parts SEL  check a URL and process selected parts
  watch      -id TASK_ID          track an existing task until it finishes
  cancel     -id TASK_ID          request cancellation of a task
  list       [-watch]             show the task list
  theme      [show|set THEME|cycle]
`

type app struct {
	cfg     *cfgpkg.Config
	logger  *slog.Logger
	client  *gateway.Client
	loop    *eventloop.Loop
	out     io.Writer
	fetcher *worker.ResultFetcher
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := cfgpkg.SetupLogger(cfg)

	client := gateway.NewClient(cfg.BackendURL, cfg.HTTPTimeout, cfg.MaxBatchURLs, logger)
	a := &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		loop:   eventloop.New(64, logger),
		out:    os.Stdout,
		fetcher: worker.NewResultFetcher(
			storage.NewFileStorage(cfg.DownloadDir), client, client.HTTPClient(), cfg.ResultWorkers, logger),
	}

	if err := a.run(os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func (a *app) run(cmd string, args []string) error {
	switch cmd {
	case "submit", "audio", "batch", "subtitle":
		return a.runSubmit(cmd, args)
	case "multipart":
		return a.runMultiPart(args)
	case "watch":
		return a.runWatch(args)
	case "cancel":
		return a.runCancel(args)
	case "list":
		return a.runList(args)
	case "theme":
		return a.runTheme(args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type optionFlags struct {
	style     string
	noPolish  bool
	noSummary bool
	fetch     bool
}

func (o *optionFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.style, "style", "", "output style: pdf_only, pdf_with_img, img_only, text_only")
	fs.BoolVar(&o.noPolish, "no-polish", false, "disable LLM text polishing")
	fs.BoolVar(&o.noSummary, "no-summary", false, "disable LLM summary")
	fs.BoolVar(&o.fetch, "fetch", false, "download result files when the task completes")
}

func (o *optionFlags) options(fs *flag.FlagSet) domain.ProcessOptions {
	opts := domain.ProcessOptions{OutputStyle: o.style}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "no-polish":
			opts.DisableLLMPolish = &o.noPolish
		case "no-summary":
			opts.DisableLLMSummary = &o.noSummary
		}
	})
	return opts
}

func (a *app) runSubmit(cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	var opts optionFlags
	opts.register(fs)
	url := fs.String("url", "", "video URL")
	file := fs.String("file", "", "audio file, or URL list file ('-' for stdin)")
	video := fs.String("video", "", "local video path")
	text := fs.String("text", "", "optional subtitle text path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.track(opts.fetch, func(tracker *service.TaskTracker, _ func(error)) error {
		po := opts.options(fs)
		switch cmd {
		case "submit":
			return tracker.SubmitSingle(domain.SingleRequest{VideoURL: *url, ProcessOptions: po})
		case "audio":
			return tracker.SubmitAudio(domain.AudioRequest{FilePath: *file, ProcessOptions: po})
		case "batch":
			list, err := readList(*file)
			if err != nil {
				return err
			}
			return tracker.SubmitBatch(list, po)
		default:
			return tracker.SubmitSubtitle(domain.SubtitleRequest{VideoPath: *video, SubtitleTextPath: *text})
		}
	})
}

func readList(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read URL list: %w", err)
	}
	return string(data), nil
}

func (a *app) runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	id := fs.String("id", "", "task id")
	fetch := fs.Bool("fetch", false, "download result files when the task completes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*id) == "" {
		return errors.New("watch: -id is required")
	}

	return a.track(*fetch, func(tracker *service.TaskTracker, _ func(error)) error {
		tracker.Track(domain.Task{ID: strings.TrimSpace(*id), Status: domain.TaskStatusPending})
		return nil
	})
}

func (a *app) runCancel(args []string) error {
	fs := flag.NewFlagSet("cancel", flag.ContinueOnError)
	id := fs.String("id", "", "task id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPTimeout)
	defer cancel()
	if err := a.client.Cancel(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "cancellation requested for %s\n", *id)
	return nil
}

func (a *app) runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "keep refreshing until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*watch {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPTimeout)
		defer cancel()
		tasks, err := a.client.ListTasks(ctx)
		if err != nil {
			return err
		}
		domain.SortNewestFirst(tasks)
		printRoster(a.out, tasks)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.loop.Post(func() {
		poller := service.NewRosterPoller(a.client, a.loop, a.cfg.ListInterval, a.cfg.HTTPTimeout, a.logger)
		poller.OnChange(func(tasks []domain.Task) {
			printRoster(a.out, tasks)
		})
		poller.Start()
	})

	if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printRoster(w io.Writer, tasks []domain.Task) {
	fmt.Fprintf(w, "%d task(s)\n", len(tasks))
	for _, t := range tasks {
		name := t.FileName
		if name == "" {
			name = t.URL
		}
		fmt.Fprintf(w, "%-36s  %-10s  %-26s  %s\n", t.ID, t.Status, t.CreatedAt, name)
	}
}

func (a *app) runMultiPart(args []string) error {
	fs := flag.NewFlagSet("multipart", flag.ContinueOnError)
	var opts optionFlags
	opts.register(fs)
	url := fs.String("url", "", "source URL")
	parts := fs.String("parts", "all", "selection: all, none, a comma-separated list, or invert:<list>")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return a.track(opts.fetch, func(tracker *service.TaskTracker, abort func(error)) error {
		flow := service.NewMultiPartFlow(a.client, tracker, a.loop, a.cfg.HTTPTimeout, a.logger)
		flow.OnChecked(func(phase service.CheckPhase) {
			if phase != service.CheckMulti {
				abort(errors.New(flow.Message()))
				return
			}
			a.printParts(flow)
			if err := applySelection(flow, *parts); err != nil {
				abort(err)
				return
			}
			if err := flow.Submit(opts.options(fs)); err != nil {
				abort(err)
			}
		})
		flow.SetURL(*url)
		return flow.Check()
	})
}

func (a *app) printParts(flow *service.MultiPartFlow) {
	info := flow.Info()
	fmt.Fprintf(a.out, "%s (%d parts)\n", info.MainTitle, len(info.Parts))
	for _, p := range info.Parts {
		fmt.Fprintf(a.out, "  P%-4s %6.0fs  %s\n", p.ID(), p.Duration, p.Title)
	}
}

func applySelection(flow *service.MultiPartFlow, sel string) error {
	sel = strings.TrimSpace(sel)
	invert := false
	if rest, ok := strings.CutPrefix(sel, "invert:"); ok {
		sel, invert = rest, true
	}

	switch sel {
	case "all":
		if err := flow.SelectAll(); err != nil {
			return err
		}
	case "none", "":
		if err := flow.DeselectAll(); err != nil {
			return err
		}
	default:
		for _, id := range strings.Split(sel, ",") {
			if err := flow.Toggle(id); err != nil {
				return err
			}
		}
	}

	if invert {
		return flow.Invert()
	}
	return nil
}

// track runs start on the event loop with a fresh tracker and blocks until
// the tracked task is finished or lost, or start's abort callback is called.
// The first interrupt asks the backend to cancel the task, the second one
// quits.
func (a *app) track(fetch bool, start func(tracker *service.TaskTracker, abort func(error)) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan error, 1)
	go func() { loopDone <- a.loop.Run(ctx) }()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	tracker := service.NewTaskTracker(a.client, a.loop, service.TrackerOptions{
		PollInterval:   a.cfg.PollInterval,
		RequestTimeout: a.cfg.HTTPTimeout,
		MaxBatchURLs:   a.cfg.MaxBatchURLs,
	}, a.logger)

	final := make(chan service.TaskState, 1)
	var lastStatus domain.TaskStatus
	tracker.OnChange(func(s service.TaskState) {
		if s.Task != nil && s.Task.Status != lastStatus {
			lastStatus = s.Task.Status
			fmt.Fprintf(a.out, "%s  %s  %s\n", s.Task.ID, s.Task.Status, s.Task.Message)
		}
		if s.Notice != nil && s.Notice.Level != service.NoticeInfo {
			fmt.Fprintf(a.out, "%s: %s\n", s.Notice.Level, s.Notice.Message)
		}
		if s.Phase.IsTerminal() || (!s.Processing && s.Phase == service.PhaseIdle && s.Notice != nil) {
			select {
			case final <- s:
			default:
			}
		}
	})

	aborted := make(chan error, 1)
	abort := func(err error) {
		select {
		case aborted <- err:
		default:
		}
	}

	startErr := make(chan error, 1)
	a.loop.Post(func() { startErr <- start(tracker, abort) })
	if err := <-startErr; err != nil {
		return err
	}

	var state service.TaskState
	for interrupted := false; ; {
		select {
		case state = <-final:
		case err := <-aborted:
			return err
		case <-sigs:
			if interrupted {
				return errors.New("interrupted")
			}
			interrupted = true
			fmt.Fprintln(a.out, "cancelling, interrupt again to quit")
			a.loop.Post(func() {
				if err := tracker.Cancel(); err != nil {
					a.logger.Warn("cannot cancel task", "error", err)
				}
			})
			continue
		}
		break
	}

	cancel()
	<-loopDone

	return a.finish(state, fetch)
}

func (a *app) finish(state service.TaskState, fetch bool) error {
	switch state.Phase {
	case service.PhaseCompleted:
		if title, ok := state.Task.ResultString("title"); ok {
			fmt.Fprintf(a.out, "completed: %s\n", title)
		}
		if state.Task.OutputDir != "" {
			fmt.Fprintf(a.out, "output: %s\n", state.Task.OutputDir)
		}
		if !fetch {
			return nil
		}
		results, err := a.fetcher.FetchAll(context.Background(), *state.Task)
		for _, r := range results {
			if r.Success {
				fmt.Fprintf(a.out, "saved %s (%d bytes)\n", filepath.ToSlash(r.Path), r.BytesRead)
			}
		}
		return err
	case service.PhaseCancelled:
		return nil
	default:
		if state.Notice != nil {
			return errors.New(state.Notice.Message)
		}
		return fmt.Errorf("task ended in phase %s", state.Phase)
	}
}

func (a *app) runTheme(args []string) error {
	repo, err := repository.NewPreferenceStorage(filepath.Join(a.cfg.StateDir, "preferences.json"), a.logger)
	if err != nil {
		return err
	}
	svc := theme.NewService(repo, theme.TerminalDark, a.logger)
	ctx := context.Background()

	action := "show"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "show":
	case "cycle":
		if _, err := svc.Cycle(ctx); err != nil {
			return err
		}
	case "set":
		if len(args) < 2 {
			return errors.New("theme set: missing theme (light, dark or system)")
		}
		t, err := theme.Parse(args[1])
		if err != nil {
			return err
		}
		if err := svc.Set(ctx, t); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown theme action %q", action)
	}

	pref, err := svc.Get(ctx)
	if err != nil {
		return err
	}
	resolved, err := svc.Resolve(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "theme: %s (renders %s)\n", pref, resolved)
	return nil
}
