// Package report summarizes a finished run for the operator.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/askbatch/internal/chat"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Output formats accepted by Summary.Write.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Summary counts the outcomes of one run.
type Summary struct {
	RunID          string        `json:"run_id"`
	Total          int           `json:"total"`
	Attempted      int           `json:"attempted"`
	Answered       int           `json:"answered"`
	NoResponse     int           `json:"no_response"`
	NoInputControl int           `json:"no_input_control"`
	Unattempted    int           `json:"unattempted"`
	Aborted        bool          `json:"aborted"`
	Interrupted    bool          `json:"interrupted"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Duration       time.Duration `json:"-"`
	DurationText   string        `json:"duration"`
}

// Summarize counts res against the total number of questions loaded.
// interrupted marks a run stopped by cancellation rather than by an abort.
func Summarize(res chat.Result, total int, interrupted bool, started, finished time.Time) Summary {
	s := Summary{
		RunID:       res.RunID,
		Total:       total,
		Attempted:   res.Attempted(),
		Aborted:     res.Aborted,
		Interrupted: interrupted,
		StartedAt:   started.UTC(),
		FinishedAt:  finished.UTC(),
		Duration:    finished.Sub(started).Round(time.Millisecond),
	}
	for _, o := range res.Outcomes {
		switch o.Failure {
		case chat.NoFailure:
			s.Answered++
		case chat.NoResponse:
			s.NoResponse++
		case chat.NoInputControl:
			s.NoInputControl++
		}
	}
	s.Unattempted = total - s.Attempted
	if s.Unattempted < 0 {
		s.Unattempted = 0
	}
	s.DurationText = s.Duration.String()
	return s
}

// Write renders the summary in the given format.
func (s Summary) Write(w io.Writer, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatText, "":
		return s.writeText(w)
	default:
		return fmt.Errorf("unsupported summary format: %s", format)
	}
}

func (s Summary) writeText(w io.Writer) error {
	status := "completed"
	switch {
	case s.Aborted:
		status = "aborted: no input control"
	case s.Interrupted:
		status = "interrupted"
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", s.RunID)
	fmt.Fprintf(tw, "Status\t%s\n", status)
	fmt.Fprintf(tw, "Questions\t%d\n", s.Total)
	fmt.Fprintf(tw, "Answered\t%d\n", s.Answered)
	fmt.Fprintf(tw, "No response\t%d\n", s.NoResponse)
	fmt.Fprintf(tw, "No input control\t%d\n", s.NoInputControl)
	fmt.Fprintf(tw, "Not attempted\t%d\n", s.Unattempted)
	fmt.Fprintf(tw, "Duration\t%s\n", s.DurationText)
	return tw.Flush()
}
