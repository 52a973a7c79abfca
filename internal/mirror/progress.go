package mirror

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

const progressTemplate pb.ProgressBarTemplate = `{{ "probing" }} {{ counters . }} {{ bar . "[" "=" ">" " " "]" }} {{ etime . }}`

// Progress renders a progress bar over finished probes.
type Progress struct {
	bar *pb.ProgressBar
}

// NewProgress starts a bar of total probes on w. A nil w yields a Progress
// that draws nothing.
func NewProgress(w io.Writer, total int) *Progress {
	if w == nil {
		return &Progress{}
	}
	bar := pb.New(total)
	bar.SetTemplate(progressTemplate)
	bar.SetWriter(w)
	bar.Start()
	return &Progress{bar: bar}
}

// Observe counts one finished probe. It is safe for concurrent use.
func (p *Progress) Observe(Result) {
	if p.bar != nil {
		p.bar.Increment()
	}
}

// Finish stops the bar.
func (p *Progress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}
