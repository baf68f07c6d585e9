// Package batch runs an exporter over every archive in a directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5export/internal/export"
	"github.com/robert-malhotra/h5export/internal/snapshot"
)

// ErrInput reports an input directory or pattern that cannot be globbed.
var ErrInput = errors.New("unusable input")

// Opener opens one archive.
type Opener func(name string) (snapshot.Handle, error)

// OpenFile opens archives from disk.
func OpenFile(name string) (snapshot.Handle, error) {
	return snapshot.Open(name)
}

// Result is the outcome for one archive.
type Result struct {
	Archive string
	Frames  int
	Err     error
}

// Summary collects the results of a batch in input order. Archives that were
// never started because the batch stopped have no result.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
}

// Frames returns the total number of frames written.
func (s *Summary) Frames() int {
	n := 0
	for _, r := range s.Results {
		n += r.Frames
	}
	return n
}

// Glob lists the archives matching pattern in dir, sorted by name.
func Glob(dir, pattern string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInput, dir)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInput, pattern, err)
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %v", ErrInput, pattern, err)
	}
	sort.Strings(files)
	return files, nil
}

// Runner exports a list of archives with a bounded number of workers.
type Runner struct {
	Exporter export.Exporter
	Open     Opener // OpenFile when nil
	Workers  int
	Log      logrus.FieldLogger
}

// Run exports files. Archive-level failures are logged and recorded in the
// summary. An output failure stops the batch and is returned, as is
// cancellation of ctx.
func (r *Runner) Run(ctx context.Context, files []string) (*Summary, error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	open := r.Open
	if open == nil {
		open = OpenFile
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		fatal   error
		started = make([]bool, len(files))
		results = make([]Result, len(files))
		jobs    = make(chan int)
	)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				// The feeder may still hand out work after a stop.
				mu.Lock()
				stopped := fatal != nil || ctx.Err() != nil
				mu.Unlock()
				if stopped {
					continue
				}
				res := r.one(ctx, open, files[i])
				mu.Lock()
				started[i] = true
				results[i] = res
				if fatal == nil && snapshot.IsOutputError(res.Err) {
					fatal = res.Err
					cancel()
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sum := &Summary{}
	for i, res := range results {
		if !started[i] {
			continue
		}
		sum.Results = append(sum.Results, res)
		if res.Err != nil {
			sum.Failed++
		} else {
			sum.Succeeded++
		}
	}

	log.WithFields(logrus.Fields{
		"format":    r.Exporter.Format(),
		"archives":  len(files),
		"succeeded": sum.Succeeded,
		"failed":    sum.Failed,
		"frames":    sum.Frames(),
	}).Info("batch finished")

	if fatal != nil {
		return sum, fatal
	}
	return sum, ctx.Err()
}

func (r *Runner) one(ctx context.Context, open Opener, name string) Result {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("archive", filepath.Base(name))

	res := Result{Archive: name}
	h, err := open(name)
	if err != nil {
		res.Err = err
		log.WithError(err).Error("cannot open archive")
		return res
	}
	defer h.Close()

	res.Frames, res.Err = r.Exporter.Export(ctx, h)
	switch {
	case res.Err == nil:
		log.WithField("frames", res.Frames).Info("exported")
	case snapshot.IsOutputError(res.Err):
		log.WithError(res.Err).Error("output failed, stopping")
	case errors.Is(res.Err, context.Canceled):
		log.WithField("frames", res.Frames).Warn("cancelled")
	default:
		log.WithError(res.Err).Error("skipping archive")
	}
	return res
}

// Run globs <dir>/<pattern> and exports every match.
func Run(ctx context.Context, dir, pattern string, workers int, e export.Exporter, log logrus.FieldLogger) (*Summary, error) {
	files, err := Glob(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 && log != nil {
		log.WithFields(logrus.Fields{"dir": dir, "pattern": pattern}).Warn("no archives matched")
	}
	r := &Runner{Exporter: e, Workers: workers, Log: log}
	return r.Run(ctx, files)
}
