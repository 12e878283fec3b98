package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/turbolytics/registrar/pkg/reconciler"
)

// Reporter prints progress for an operator as the engine works.
type Reporter struct {
	out   io.Writer
	lines []Line
}

func New(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

func (r *Reporter) RecordAttempt(asset reconciler.Asset, step reconciler.Step) {
	switch step {
	case reconciler.StepCreate:
		fmt.Fprintf(r.out, "\nProcessing: %s\n", asset.Name)
		fmt.Fprintf(r.out, "  → Creating VRM Application '%s'...\n", asset.Name)
	case reconciler.StepLink:
		fmt.Fprintf(r.out, "  → Linking asset to application...\n")
	}
}

func (r *Reporter) RecordCreated(asset reconciler.Asset, applicationID string) {
	fmt.Fprintf(r.out, "  ✓ Created (ID: %s)\n", applicationID)
}

func (r *Reporter) RecordOutcome(o reconciler.Outcome) {
	r.lines = append(r.lines, NewLine(o))

	switch o.Status {
	case reconciler.StatusCreateFailed, reconciler.StatusLinkFailed:
		fmt.Fprintf(r.out, "  ✗ Error: %v\n", o.Err)
	case reconciler.StatusLinked:
		fmt.Fprintf(r.out, "  ✓ Linked\n")
	}
}

// Lines returns the status lines recorded so far, in processing order.
func (r *Reporter) Lines() []Line {
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Render writes the summary block of a report.
func Render(w io.Writer, report Report) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "Summary: %d apps created, %d assets linked\n", report.Created, report.Linked)
	if report.CreateFailed > 0 || report.LinkFailed > 0 {
		fmt.Fprintf(w, "Failures: %d creates, %d links\n", report.CreateFailed, report.LinkFailed)
		for _, l := range report.Items {
			if l.Error != "" {
				fmt.Fprintf(w, "  - %s [%s]: %s\n", l.Name, l.Status, l.Error)
			}
		}
	}
	if report.Error != "" {
		fmt.Fprintf(w, "Run aborted: %s\n", report.Error)
	}
	fmt.Fprintf(w, "%s\n", rule)
}

// MultiRecorder fans progress out to several recorders.
type MultiRecorder []reconciler.Recorder

func (m MultiRecorder) RecordAttempt(asset reconciler.Asset, step reconciler.Step) {
	for _, r := range m {
		r.RecordAttempt(asset, step)
	}
}

func (m MultiRecorder) RecordCreated(asset reconciler.Asset, applicationID string) {
	for _, r := range m {
		r.RecordCreated(asset, applicationID)
	}
}

func (m MultiRecorder) RecordOutcome(o reconciler.Outcome) {
	for _, r := range m {
		r.RecordOutcome(o)
	}
}
