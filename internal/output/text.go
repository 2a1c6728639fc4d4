// Package output formats samples and results as fixed-width text.
package output

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/pathsim/bikesim/pkg/core"
)

// AbortNotice is printed when a run ends with negative velocity.
const AbortNotice = "Your bicycle started going backwards!"

// Column widths of a sample line.
const (
	timeWidth     = 9
	distanceWidth = 10
	altitudeWidth = 8
	speedWidth    = 7
	slopeWidth    = 7
	marginWidth   = 9
)

// Header returns the column titles aligned with SampleLine.
func Header() string {
	return fmt.Sprintf("%*s %*s %*s %*s %*s %*s",
		timeWidth+2, "time",
		distanceWidth+2, "distance",
		altitudeWidth+2, "altitude",
		speedWidth+5, "speed",
		slopeWidth+2, "slope",
		marginWidth+2, "margin",
	)
}

// SampleLine formats one sample.
func SampleLine(s core.Sample) string {
	return fmt.Sprintf("%*.1f s %*.1f m %*.1f m %*.1f km/h %*.2f %% %*.1f W",
		timeWidth, s.Time,
		distanceWidth, s.Position,
		altitudeWidth, s.Altitude,
		speedWidth, s.SpeedKmh(),
		slopeWidth, s.Slope*100,
		marginWidth, s.PowerMargin,
	)
}

// HMS splits seconds into hours, minutes and seconds rounded to a tenth.
func HMS(total float64) (h, m int, s float64) {
	tenths := int64(math.Round(total * 10))
	if tenths < 0 {
		tenths = 0
	}
	h = int(tenths / 36000)
	m = int(tenths % 36000 / 600)
	s = float64(tenths%600) / 10
	return h, m, s
}

// Summary formats the total elapsed time.
func Summary(total float64) string {
	h, m, s := HMS(total)
	return fmt.Sprintf("Total elapsed time: %dh %02dm %04.1fs (%.1f s)", h, m, s, total)
}

// Printer writes sample lines and the final result to an io.Writer.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	header bool
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// OnSample prints s, preceded by the header on the first call.
func (p *Printer) OnSample(s core.Sample) {
	_ = p.PrintSample(s)
}

// PrintSample prints s, preceded by the header on the first call.
func (p *Printer) PrintSample(s core.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.header {
		p.header = true
		if _, err := fmt.Fprintln(p.w, Header()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(p.w, SampleLine(s))
	return err
}

// PrintResult prints the abort notice if any and the summary.
func (p *Printer) PrintResult(res core.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res.Aborted {
		if _, err := fmt.Fprintln(p.w, AbortNotice); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(p.w, Summary(res.TotalElapsedTime))
	return err
}
