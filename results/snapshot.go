package results

import (
	"fmt"
	"time"

	"github.com/perfgo/pagerunner/model"
	"github.com/perfgo/pagerunner/value"
)

// Snapshot is the serializable form of finished results.
type Snapshot struct {
	Pages   []*model.Page  `json:"pages"`
	Runs    []RunRecord    `json:"runs"`
	Summary []value.Record `json:"summary,omitempty"`
}

// RunRecord is the serializable form of a PageRun.
type RunRecord struct {
	// Index into Snapshot.Pages
	Page    int            `json:"page"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	Values  []value.Record `json:"values,omitempty"`
}

// Snapshot returns the finished runs and summary values. The run in
// progress, if any, is not included.
func (r *Results) Snapshot() Snapshot {
	var s Snapshot
	index := make(map[*model.Page]int)
	pageIndex := func(p *model.Page) int {
		if i, ok := index[p]; ok {
			return i
		}
		index[p] = len(s.Pages)
		s.Pages = append(s.Pages, p)
		return index[p]
	}
	if r.pageSet != nil {
		for _, p := range r.pageSet.Pages {
			pageIndex(p)
		}
	}

	for _, run := range r.runs {
		rec := RunRecord{
			Page:    pageIndex(run.Page),
			Status:  run.Status,
			Message: run.Message,
			Start:   run.Start,
			End:     run.End,
		}
		for _, v := range run.Values {
			rec.Values = append(rec.Values, value.ToRecord(v))
		}
		s.Runs = append(s.Runs, rec)
	}
	for _, v := range r.summaryValues {
		s.Summary = append(s.Summary, value.ToRecord(v))
	}
	return s
}

// FromSnapshot rebuilds results from a snapshot. Unless a page set is
// given, the snapshot pages become the page set.
func FromSnapshot(s Snapshot, opts ...Option) (*Results, error) {
	r := New(opts...)
	if r.pageSet == nil {
		r.pageSet = &model.PageSet{Pages: s.Pages}
	}

	for i, rec := range s.Runs {
		if rec.Page < 0 || rec.Page >= len(s.Pages) || s.Pages[rec.Page] == nil {
			return nil, fmt.Errorf("run %d refers to unknown page %d", i, rec.Page)
		}
		page := s.Pages[rec.Page]
		run := &PageRun{
			Page:    page,
			Status:  rec.Status,
			Message: rec.Message,
			Start:   rec.Start,
			End:     rec.End,
		}
		for _, vr := range rec.Values {
			v, err := value.FromRecord(page, vr)
			if err != nil {
				return nil, fmt.Errorf("run %d: %w", i, err)
			}
			if err := r.checkName("FromSnapshot", v); err != nil {
				return nil, err
			}
			run.Values = append(run.Values, v)
		}
		r.runs = append(r.runs, run)
	}

	for _, vr := range s.Summary {
		v, err := value.FromRecord(nil, vr)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		if err := r.AddSummaryValue(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}
