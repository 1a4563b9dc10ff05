package analytics

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"stockSignalBot/internal/domain"
)

// WriteReport renders a session summary as a human-readable table.
func WriteReport(w io.Writer, s *SessionSummary) error {
	if s.TotalSignals == 0 {
		_, err := fmt.Fprintln(w, "No signals emitted.")
		return err
	}

	fmt.Fprintf(w, "Signals: %d (BUY %d / SELL %d / HOLD %d)\n",
		s.TotalSignals,
		s.Counts[domain.SignalBuy],
		s.Counts[domain.SignalSell],
		s.Counts[domain.SignalHold],
	)
	fmt.Fprintf(w, "Window:  %s .. %s\n",
		s.FirstSignal.Format(time.RFC3339),
		s.LastSignal.Format(time.RFC3339),
	)
	fmt.Fprintf(w, "Average strength: %.2f\n\n", s.AverageStrength)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(tw, "Symbol\tSignals\tBUY\tSELL\tHOLD\tFlips\tMaxStrength\tLast\t")
	for _, sym := range s.SortedSymbols() {
		last := ""
		if sym.Last != nil {
			last = fmt.Sprintf("%s @ %s", sym.Last.Classification, sym.Last.Timestamp.Format("15:04:05"))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%s\t\n",
			sym.Symbol,
			sym.Total,
			sym.Counts[domain.SignalBuy],
			sym.Counts[domain.SignalSell],
			sym.Counts[domain.SignalHold],
			sym.Flips,
			sym.MaxStrength,
			last,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	top := s.TopReasons(5)
	if len(top) > 0 {
		fmt.Fprintln(w, "\nTop rule reasons:")
		for _, rc := range top {
			fmt.Fprintf(w, "  %3dx %s\n", rc.Count, rc.Reason)
		}
	}
	return nil
}
