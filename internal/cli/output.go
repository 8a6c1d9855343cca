package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/thoas/go-funk"
	"sigs.k8s.io/yaml"

	api "github.com/micheleDibi/StyleForge-sub000/api/v1alpha1"
	"github.com/micheleDibi/StyleForge-sub000/internal/view"
)

const (
	jsonFormat = "json"
	yamlFormat = "yaml"
)

var (
	legalOutputTypes = []string{jsonFormat, yamlFormat}
)

func validateOutput(output string) error {
	if len(output) > 0 && !funk.Contains(legalOutputTypes, output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

// writeDocument prints v as a single json line or a yaml document.
func writeDocument(w io.Writer, output string, v interface{}) error {
	switch output {
	case jsonFormat:
		marshalled, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", marshalled)
		return err
	case yamlFormat:
		marshalled, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshalling resource: %w", err)
		}
		_, err = fmt.Fprintf(w, "---\n%s", marshalled)
		return err
	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
}

func statusLine(status *api.JobStatus, eta string) string {
	if eta == "" {
		eta = "-"
	}
	line := fmt.Sprintf("%-12s %3d%%  %s", status.Status, status.Progress, eta)
	if msg := status.MessageText(); msg != "" {
		line += "  " + msg
	}
	return line
}

// progressPrinter renders the snapshots of a watch, one line per reading.
type progressPrinter struct {
	lock   sync.Mutex
	out    io.Writer
	output string
	last   *api.JobStatus
	err    error
}

func newProgressPrinter(out io.Writer, output string) *progressPrinter {
	return &progressPrinter{out: out, output: output}
}

// Tick prints a snapshot carrying a reading not printed yet.
func (p *progressPrinter) Tick(s view.Snapshot) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if s.Status == nil || s.Status == p.last {
		return
	}
	p.last = s.Status

	var err error
	if p.output == "" {
		_, err = fmt.Fprintln(p.out, statusLine(s.Status, s.EstimatedRemaining))
	} else {
		err = writeDocument(p.out, p.output, s)
	}
	if err != nil && p.err == nil {
		p.err = err
	}
}

// Final prints the end of the watch and returns the first write error.
func (p *progressPrinter) Final(s view.Snapshot) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.err != nil {
		return p.err
	}

	if p.output != "" {
		// completed and failed were already printed by Tick
		if s.State == view.StateCompleted || s.State == view.StateFailed {
			return nil
		}
		return writeDocument(p.out, p.output, s)
	}

	var err error
	switch s.State {
	case view.StateCompleted:
		_, err = fmt.Fprintf(p.out, "job %s completed\n", s.JobID)
	case view.StateFailed:
		_, err = fmt.Fprintf(p.out, "job %s failed: %s\n", s.JobID, s.Error)
	default:
		_, err = fmt.Fprintf(p.out, "job %s %s: %s\n", s.JobID, s.State, s.Error)
	}
	return err
}
