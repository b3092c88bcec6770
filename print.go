package dramsim

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// PrintStats writes a human-readable final-stats table to w, one row per
// channel, the way dramsim3's own PrintStats dumps a final summary at exit.
func (s *System) PrintStats(w io.Writer) error {
	return s.printTable(w, "final")
}

// PrintEpochStats writes the same table, labeled with the current cycle, for
// the periodic mid-run output described in spec.md §6.
func (s *System) PrintEpochStats(w io.Writer) error {
	return s.printTable(w, fmt.Sprintf("epoch @ cycle %d", s.clk))
}

func (s *System) printTable(w io.Writer, label string) error {
	fmt.Fprintf(w, "dramsim stats (%s)\n", label)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"channel", "reads", "writes", "row hits", "row misses",
		"activates", "precharges", "on-demand pre", "refreshes",
		"avg lat (cyc)", "avg queue depth",
	})

	for i, c := range s.controllers {
		snap := c.Stats().Snapshot()
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatUint(snap.ReadsIssued, 10),
			strconv.FormatUint(snap.WritesIssued, 10),
			strconv.FormatUint(snap.RowHits, 10),
			strconv.FormatUint(snap.RowMisses, 10),
			strconv.FormatUint(snap.ActivatesIssued, 10),
			strconv.FormatUint(snap.PrechargesIssued, 10),
			strconv.FormatUint(snap.OnDemandPrecharges, 10),
			strconv.FormatUint(snap.RefreshesIssued, 10),
			strconv.FormatFloat(snap.AverageAccessLatency, 'f', 2, 64),
			strconv.FormatFloat(snap.AverageQueueUsage, 'f', 2, 64),
		})
	}
	table.Render()
	return nil
}

// WriteStatsCSV writes one CSV row per channel to w, for offline analysis
// tooling that the text table isn't meant for. This is the one ambient
// concern left on encoding/csv rather than a pack dependency: nothing in
// the example pack carries a CSV-writing library, and the stdlib writer is
// already the idiomatic choice for a flat, well-known column set.
func (s *System) WriteStatsCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"channel", "reads", "writes", "row_hits", "row_misses",
		"activates", "precharges", "on_demand_precharges", "refreshes",
		"avg_latency_cycles", "avg_queue_depth",
	}
	if err := cw.Write(header); err != nil {
		return &Error{Op: "WriteStatsCSV", Code: ErrCodeIO, Channel: -1, Inner: err}
	}

	for i, c := range s.controllers {
		snap := c.Stats().Snapshot()
		row := []string{
			strconv.Itoa(i),
			strconv.FormatUint(snap.ReadsIssued, 10),
			strconv.FormatUint(snap.WritesIssued, 10),
			strconv.FormatUint(snap.RowHits, 10),
			strconv.FormatUint(snap.RowMisses, 10),
			strconv.FormatUint(snap.ActivatesIssued, 10),
			strconv.FormatUint(snap.PrechargesIssued, 10),
			strconv.FormatUint(snap.OnDemandPrecharges, 10),
			strconv.FormatUint(snap.RefreshesIssued, 10),
			strconv.FormatFloat(snap.AverageAccessLatency, 'f', 2, 64),
			strconv.FormatFloat(snap.AverageQueueUsage, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return &Error{Op: "WriteStatsCSV", Code: ErrCodeIO, Channel: i, Inner: err}
		}
	}
	return nil
}
