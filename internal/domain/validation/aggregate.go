package validation

import (
	"sort"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
)

type indexed struct {
	index int
	res   ddq.RowResult
}

// Aggregator collects row results in any order and emits them in extraction order.
// It is a single-writer reducer: call Add from one goroutine only.
type Aggregator struct {
	rows   []indexed
	counts map[ddq.Status]int
	flag   int
}

func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[ddq.Status]int)}
}

// Add records the result of the row at extraction position index.
func (a *Aggregator) Add(index int, r ddq.RowResult) {
	a.rows = append(a.rows, indexed{index: index, res: r})
	a.counts[r.Status]++
	if r.Status.Flagged() {
		a.flag++
	}
}

// Len is the number of rows seen so far.
func (a *Aggregator) Len() int { return len(a.rows) }

// Summary returns the running counts.
func (a *Aggregator) Summary() ddq.Summary {
	by := make(map[string]int, len(a.counts))
	for st, n := range a.counts {
		by[string(st)] = n
	}
	return ddq.Summary{TotalRows: len(a.rows), TotalFlagged: a.flag, ByStatus: by}
}

// Finalize restores extraction order and returns the report.
func (a *Aggregator) Finalize() ddq.Report {
	sorted := make([]indexed, len(a.rows))
	copy(sorted, a.rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].index < sorted[j].index })

	rows := make([]ddq.RowResult, len(sorted))
	for i, it := range sorted {
		rows[i] = it.res
	}
	return ddq.Report{Rows: rows, Summary: a.Summary()}
}

// Summarize builds a summary over already ordered results.
func Summarize(rows []ddq.RowResult) ddq.Summary {
	agg := NewAggregator()
	for i, r := range rows {
		agg.Add(i, r)
	}
	return agg.Summary()
}
