package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ppiankov/donortrace/internal/model"
)

// Analyzer runs a full analysis for one legislator
type Analyzer interface {
	AnalyzePerson(ctx context.Context, personID model.ID) ([]*model.Report, error)
}

// AnalyzerFunc adapts a function to Analyzer
type AnalyzerFunc func(ctx context.Context, personID model.ID) ([]*model.Report, error)

// AnalyzePerson calls f
func (f AnalyzerFunc) AnalyzePerson(ctx context.Context, personID model.ID) ([]*model.Report, error) {
	return f(ctx, personID)
}

// PersonJob analyses one legislator
type PersonJob struct {
	PersonID model.ID
	Analyzer Analyzer
}

// Execute runs the analysis
func (j *PersonJob) Execute(ctx context.Context) Result {
	reports, err := j.Analyzer.AnalyzePerson(ctx, j.PersonID)
	return &PersonResult{
		PersonID: j.PersonID,
		Reports:  reports,
		Error:    err,
	}
}

// PersonResult holds the reports produced for one legislator. Reports
// may be non-empty alongside Error when some sessions failed.
type PersonResult struct {
	PersonID model.ID
	Reports  []*model.Report
	Error    error
}

// Err returns the analysis error
func (r *PersonResult) Err() error {
	return r.Error
}

// BatchProcessor analyses several legislators concurrently. Each job
// gets its own analyzer state; only the pool is shared.
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ErrNotRun marks a legislator whose analysis never started because the
// batch was cancelled first.
var ErrNotRun = errors.New("analysis not run")

// ProcessPeople analyses each person and returns exactly one result per
// id, in input order.
func (b *BatchProcessor) ProcessPeople(ctx context.Context, personIDs []model.ID) []*PersonResult {
	if len(personIDs) == 0 {
		return []*PersonResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, id := range personIDs {
		if !pool.Submit(&PersonJob{PersonID: id, Analyzer: b.analyzer}) {
			break
		}
	}

	results := pool.Wait()

	personResults := make([]*PersonResult, len(personIDs))
	for i, id := range personIDs {
		if i < len(results) && results[i] != nil {
			personResults[i] = results[i].(*PersonResult)
			continue
		}
		err := ErrNotRun
		if cause := ctx.Err(); cause != nil {
			err = fmt.Errorf("%w: %w", ErrNotRun, cause)
		}
		personResults[i] = &PersonResult{PersonID: id, Error: err}
	}
	return personResults
}

// ProcessFile reads person ids from a file and analyses them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*PersonResult, error) {
	ids, err := ReadPersonIDsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read person ids: %w", err)
	}

	return b.ProcessPeople(ctx, ids), nil
}

// ReadPersonIDsFromFile reads one person id per line. Blank lines and
// "#" comments are skipped; duplicates are dropped.
func ReadPersonIDsFromFile(filePath string) ([]model.ID, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var ids []model.ID
	seen := make(map[model.ID]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("line %d: invalid person id %q", lineNo, line)
		}

		id := model.ID(n)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return ids, nil
}
