// Package worker builds several years' snapshots in parallel.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/FatmaElik/risk-map/internal/pipeline"
)

// Task is one year to build.
type Task struct {
	Year int
}

// Result is the outcome of a build task.
type Result struct {
	Task     Task
	Snapshot *pipeline.Snapshot
	Err      error
	Elapsed  time.Duration
}

// ResultFunc receives each result as soon as it is available. Calls are
// serialized.
type ResultFunc func(Result)

// Config configures the worker pool.
type Config struct {
	Workers  int
	Builder  pipeline.SnapshotBuilder
	OnResult ResultFunc
}

// Pool runs snapshot builds on a fixed number of workers.
type Pool struct {
	workers  int
	builder  pipeline.SnapshotBuilder
	onResult ResultFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:  workers,
		builder:  cfg.Builder,
		onResult: cfg.OnResult,
	}
}

// Run builds every task and returns the results ordered by year. It blocks
// until all tasks finish; tasks picked up after ctx is cancelled fail with
// the context error without building.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, taskCh, resultCh)
		}()
	}

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	results := make([]Result, 0, len(tasks))
	done := make(chan struct{})

	go func() {
		for result := range resultCh {
			results = append(results, result)
			if p.onResult != nil {
				p.onResult(result)
			}
		}
		close(done)
	}()

	wg.Wait()
	close(resultCh)
	<-done

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Task.Year < results[j].Task.Year
	})
	return results
}

func (p *Pool) worker(ctx context.Context, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		snap, err := p.builder.Build(ctx, task.Year)
		results <- Result{
			Task:     task,
			Snapshot: snap,
			Err:      err,
			Elapsed:  time.Since(start),
		}
	}
}

// YearTasks turns a list of years into tasks, dropping duplicates.
func YearTasks(years []int) []Task {
	seen := make(map[int]struct{}, len(years))
	tasks := make([]Task, 0, len(years))
	for _, y := range years {
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		tasks = append(tasks, Task{Year: y})
	}
	return tasks
}
