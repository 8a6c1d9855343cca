package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/avast/retry-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/client"
	"github.com/micheleDibi/StyleForge-sub000/internal/jobs"
)

const defaultGetAttempts = 3

type GetOptions struct {
	GlobalOptions

	Output   string
	Attempts uint
	Delay    time.Duration

	out io.Writer
}

func DefaultGetOptions() *GetOptions {
	return &GetOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Attempts:      defaultGetAttempts,
		Delay:         time.Second,
		out:           os.Stdout,
	}
}

func NewCmdGet() *cobra.Command {
	o := DefaultGetOptions()
	cmd := &cobra.Command{
		Use:   "get FAMILY/ID",
		Short: "Display the status of a job.",
		Args:  cobra.ExactArgs(1),
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

func (o *GetOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)

	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
	fs.UintVar(&o.Attempts, "attempts", o.Attempts, "Number of attempts on transport and server errors.")
}

func (o *GetOptions) Complete(cmd *cobra.Command, args []string) error {
	return o.GlobalOptions.Complete(cmd, args)
}

func (o *GetOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if _, _, err := parseJobArg(args[0]); err != nil {
		return err
	}
	if o.Attempts < 1 {
		return fmt.Errorf("--attempts must be at least 1")
	}
	return validateOutput(o.Output)
}

func (o *GetOptions) Run(ctx context.Context, args []string) error {
	family, id, err := parseJobArg(args[0])
	if err != nil {
		return err
	}

	c, err := o.Client()
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	status, err := getWithRetry(ctx, c, family, id, o.Attempts, o.Delay)
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", family, id, err)
	}

	if o.Output != "" {
		return writeDocument(o.out, o.Output, status)
	}
	return printStatusTable(o.out, family, status)
}

func getWithRetry(ctx context.Context, c *client.JobsClient, family api.JobFamily, id string, attempts uint, delay time.Duration) (*api.JobStatus, error) {
	var status *api.JobStatus
	err := retry.Do(
		func() error {
			s, err := c.GetJobStatus(ctx, family, id)
			if err != nil {
				return err
			}
			status = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			zap.S().Named("get").Warnw("reading job status failed, retrying", "job_id", id, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// retryable reports whether a read may succeed when repeated: transport
// failures and server errors are, client errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func printStatusTable(out io.Writer, family api.JobFamily, status *api.JobStatus) error {
	w := tabwriter.NewWriter(out, 0, 8, 1, '\t', 0)
	fmt.Fprintln(w, "ID\tFAMILY\tSTATUS\tPHASE\tPROGRESS\tMESSAGE")
	detail := status.MessageText()
	if msg := status.ErrorMessage(); msg != "" {
		detail = msg
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\n",
		status.JobId, family, status.Status, jobs.Classify(family, status.Status), status.Progress, detail)
	return w.Flush()
}
