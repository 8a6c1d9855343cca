package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	apiserver "github.com/micheleDibi/StyleForge-sub000/internal/api_server"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
	"github.com/micheleDibi/StyleForge-sub000/internal/poller"
	"github.com/micheleDibi/StyleForge-sub000/internal/view"
)

type WatchOptions struct {
	GlobalOptions

	Interval       time.Duration
	Timeout        time.Duration
	RequestTimeout time.Duration
	MaxFailures    int
	Jitter         time.Duration
	Output         string
	MetricsAddress string

	out io.Writer
}

func DefaultWatchOptions() *WatchOptions {
	o := &WatchOptions{
		GlobalOptions:  DefaultGlobalOptions(),
		RequestTimeout: poller.DefaultRequestTimeout,
		MaxFailures:    poller.DefaultMaxConsecutiveFailures,
		out:            os.Stdout,
	}
	if cfg := o.GlobalOptions.cfg; cfg != nil {
		o.Interval = cfg.Watch.Interval
		o.Timeout = cfg.Watch.Timeout
		o.RequestTimeout = cfg.Watch.RequestTimeout
		o.MaxFailures = cfg.Watch.MaxFailures
		o.Jitter = cfg.Watch.Jitter
		o.MetricsAddress = cfg.Watch.MetricsAddress
	}
	return o
}

func NewCmdWatch() *cobra.Command {
	o := DefaultWatchOptions()
	cmd := &cobra.Command{
		Use:   "watch FAMILY/ID",
		Short: "Poll a job until it completes, printing its progress.",
		Long: fmt.Sprintf("Poll a job until it completes, printing its progress.\n\nFAMILY is one of: %s.",
			familyNames()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *WatchOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.DurationVar(&o.Interval, "interval", o.Interval, "Delay between two status reads. Defaults to the job family interval.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Give up after this long. Defaults to the job family timeout.")
	fs.DurationVar(&o.RequestTimeout, "request-timeout", o.RequestTimeout, "Timeout of a single status read.")
	fs.IntVar(&o.MaxFailures, "max-failures", o.MaxFailures, "Consecutive failed reads tolerated before giving up.")
	fs.DurationVar(&o.Jitter, "jitter", o.Jitter, "Standard deviation of the random jitter added to the interval.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.StringVar(&o.MetricsAddress, "metrics-address", o.MetricsAddress, "Serve /metrics and /status on this address while watching.")
}

func (o *WatchOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *WatchOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	family, _, err := parseJobArg(args[0])
	if err != nil {
		return err
	}
	if err := validateOutput(o.Output); err != nil {
		return err
	}
	if o.Interval < 0 || o.Timeout < 0 || o.RequestTimeout < 0 || o.Jitter < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	interval := o.Interval
	if interval == 0 {
		interval = jobs.DefaultInterval(family)
	}
	if o.Jitter >= interval {
		return fmt.Errorf("--jitter must be shorter than the poll interval (%s)", interval)
	}
	if o.MaxFailures < 1 {
		return fmt.Errorf("--max-failures must be at least 1")
	}
	return nil
}

func (o *WatchOptions) Run(ctx context.Context, args []string) error {
	family, id, err := parseJobArg(args[0])
	if err != nil {
		return err
	}

	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := view.New(c.Fetcher(family), o.pollOptions(family))
	printer := newProgressPrinter(o.out, o.Output)
	v.Subscribe(printer.Tick)

	if o.MetricsAddress != "" {
		stopServer, err := o.serveStatus(ctx, v)
		if err != nil {
			return err
		}
		defer stopServer()
	}

	v.Watch(ctx, id)
	s := v.Wait()

	if err := printer.Final(s); err != nil {
		return err
	}
	return watchResult(s)
}

func (o *WatchOptions) pollOptions(family api.JobFamily) poller.Options {
	opts := poller.Options{
		Family:                 family,
		Interval:               o.Interval,
		Timeout:                o.Timeout,
		RequestTimeout:         o.RequestTimeout,
		MaxConsecutiveFailures: o.MaxFailures,
	}
	if opts.Timeout == 0 {
		opts.Timeout = jobs.DefaultTimeout(family)
	}
	if o.Jitter > 0 {
		opts.Jitter = &jitterbug.Norm{Stdev: o.Jitter}
	}
	return opts
}

func (o *WatchOptions) serveStatus(ctx context.Context, v *view.JobStatusView) (func(), error) {
	listener, err := net.Listen("tcp", o.MetricsAddress)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", o.MetricsAddress, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	server := apiserver.NewStatusServer(listener, v)
	go func() {
		defer close(done)
		defer utilruntime.HandleCrash()
		if err := server.Run(ctx); err != nil {
			zap.S().Named("watch").Errorw("status server stopped", "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// watchResult turns the final snapshot into the command result.
func watchResult(s view.Snapshot) error {
	switch s.State {
	case view.StateCompleted:
		return nil
	case view.StateFailed:
		return fmt.Errorf("job %s failed: %s", s.JobID, s.Error)
	default:
		err := s.Err
		if err == nil {
			err = errors.New(string(s.State))
		}
		return fmt.Errorf("watching job %s: %w", s.JobID, err)
	}
}

func familyNames() string {
	names := make([]string, 0, len(jobs.Families()))
	for _, f := range jobs.Families() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
