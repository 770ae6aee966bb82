package report

import (
	"fmt"
	"log/slog"

	"prospect/internal/fasta"
	"prospect/internal/tab"
)

// AttachSequences appends a seq column to the table, filled from the FASTA
// file keyed by the ID column. Records without a sequence get an empty
// cell and are counted; a handful of misses is expected when the FASTA was
// produced before late-stage filtering.
func AttachSequences(t *tab.Table, fastaPath, idCol string, logger *slog.Logger) (*tab.Table, int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	idIdx, ok := t.Col(idCol)
	if !ok {
		return nil, 0, fmt.Errorf("table has no column %q", idCol)
	}

	seqs, err := fasta.Index(fastaPath)
	if err != nil {
		return nil, 0, fmt.Errorf("indexing %s: %w", fastaPath, err)
	}

	header := append(append([]string(nil), t.Header...), "seq")
	rows := make([][]string, len(t.Rows))
	missing := 0
	for i, row := range t.Rows {
		seq, ok := seqs[row[idIdx]]
		if !ok {
			missing++
		}
		rows[i] = append(append([]string(nil), row...), seq)
	}
	if missing > 0 {
		logger.Warn("records without a sequence in FASTA", "missing", missing, "fasta", fastaPath)
	}
	return tab.NewTable(header, rows), missing, nil
}
