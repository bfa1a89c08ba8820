package stats

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/frobware/go-xdpstats"
)

const (
	headerFormat = "%-12s %16s %16s %18s %16s %s\n"
	rowFormat    = "%-12s %11d pkts (%10.0f pps) %11d Kbytes (%6.0f Mbits/s) period:%f\n"
)

// Formatter renders report tables with thousands separators.
type Formatter struct {
	p *message.Printer
}

// NewFormatter creates a Formatter using English digit grouping.
func NewFormatter() *Formatter {
	return &Formatter{p: message.NewPrinter(language.English)}
}

// Header writes the column titles.
func (f *Formatter) Header(w io.Writer) {
	f.p.Fprintf(w, "\n")
	f.p.Fprintf(w, headerFormat, "XDP-action", "packets", "packet rate", "Bytes", "Bit rate", "Time period")
	f.p.Fprintf(w, headerFormat, "------------", "----------------", "----------------",
		"------------------", "----------------", "---------------")
}

// Report writes one table comparing cur against prev. Nothing is
// written when the period is not positive.
func (f *Formatter) Report(w io.Writer, prev, cur xdpstats.Snapshot) {
	period := cur.Period(prev)
	if period <= 0 {
		return
	}

	f.Header(w)
	for _, action := range xdpstats.Actions() {
		rec := cur.Records[action]
		pps, bps := Rates(prev.Records[action], rec, period)
		f.p.Fprintf(w, rowFormat, action.String(), rec.Packets, pps, rec.Bytes/1000, bps/1e6, period)
	}
	f.p.Fprintf(w, "\n")
}
