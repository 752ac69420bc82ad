package dataset

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/debris/common"
	"github.com/nvr-ai/debris/logging"
)

// SplitReport summarizes one split.
type SplitReport struct {
	Name     string
	Dir      string
	LabelDir string
	Images   int
	// Labeled counts images with a label file, empty or not.
	Labeled int
	// Background counts images with zero objects: no label file or an empty one.
	Background int
	// Unlabeled lists the images without a label file.
	Unlabeled []string
	Orphans   []string
	// Instances counts valid objects per class index.
	Instances []int
	// EmptyBoxes counts valid objects with zero width or height.
	EmptyBoxes int
}

// Objects returns the number of valid objects in the split.
func (s *SplitReport) Objects() int {
	n := 0
	for _, c := range s.Instances {
		n += c
	}
	return n
}

// Report is the outcome of validating a dataset against its descriptor.
type Report struct {
	Descriptor *Descriptor
	Splits     []*SplitReport
	// Errors holds every label contract violation, sorted by path and line.
	Errors   []*common.LabelError
	Warnings []string
}

// Err joins the label errors, or returns nil when every label is valid.
func (r *Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return stderrors.Join(errs...)
}

type fileResult struct {
	labels []Label
	errs   []*common.LabelError
}

// Validate checks every label file of both splits against the descriptor.
//
// Label files are read by at most workers goroutines. When training and validation share
// a directory the split is scanned once and reported under both names with a warning.
//
// Arguments:
//   - ctx: Cancels the scan.
//   - d: The loaded descriptor.
//   - workers: Maximum concurrent label reads, at least 1.
//
// Returns:
//   - *Report: Counts, label errors and warnings. Label errors do not fail the call; use
//     Report.Err.
//   - error: A directory or file that could not be read, or ctx cancellation.
func Validate(ctx context.Context, d *Descriptor, workers int) (*Report, error) {
	log := logging.Module("dataset")
	if workers < 1 {
		workers = 1
	}

	report := &Report{Descriptor: d}

	cache := map[string]*SplitReport{}
	for _, split := range []struct{ name, dir string }{{"train", d.Train}, {"val", d.Val}} {
		if prev, ok := cache[split.dir]; ok {
			shared := *prev
			shared.Name = split.name
			report.Splits = append(report.Splits, &shared)
			continue
		}
		sr, errs, err := validateSplit(ctx, split.name, split.dir, d.NC(), workers)
		if err != nil {
			return nil, err
		}
		cache[split.dir] = sr
		report.Splits = append(report.Splits, sr)
		report.Errors = append(report.Errors, errs...)
	}

	sort.Slice(report.Errors, func(i, j int) bool {
		a, b := report.Errors[i], report.Errors[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Line < b.Line
	})

	if d.SharedSplit() {
		report.Warnings = append(report.Warnings,
			"train and val resolve to the same directory; validation metrics are measured on training images")
	}
	for _, sr := range report.Splits {
		if sr.Images == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s split %s contains no images", sr.Name, sr.Dir))
		}
		if len(sr.Orphans) > 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s split has %d label files without an image", sr.Name, len(sr.Orphans)))
		}
		if sr.EmptyBoxes > 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s split has %d boxes with zero width or height", sr.Name, sr.EmptyBoxes))
		}
	}

	for _, w := range report.Warnings {
		log.Warn(w, "descriptor", d.Source)
	}
	log.Info("dataset validated",
		"descriptor", d.Source,
		"label_errors", len(report.Errors),
		"warnings", len(report.Warnings))

	return report, nil
}

func validateSplit(ctx context.Context, name, dir string, nc, workers int) (*SplitReport, []*common.LabelError, error) {
	split, err := ScanSplit(dir)
	if err != nil {
		return nil, nil, err
	}

	results := make([]fileResult, len(split.Samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range split.Samples {
		if s.Label == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			labels, errs, err := readLabels(s.Label, nc)
			if err != nil {
				return err
			}
			results[i] = fileResult{labels: labels, errs: errs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sr := &SplitReport{
		Name:      name,
		Dir:       split.Dir,
		LabelDir:  split.LabelDir,
		Images:    len(split.Samples),
		Unlabeled: split.Unlabeled,
		Orphans:   split.Orphans,
		Instances: make([]int, nc),
	}

	var errs []*common.LabelError
	for i, s := range split.Samples {
		if s.Label == "" {
			sr.Background++
			continue
		}
		sr.Labeled++
		res := results[i]
		if len(res.labels) == 0 && len(res.errs) == 0 {
			sr.Background++
		}
		for _, l := range res.labels {
			sr.Instances[l.Class]++
			if l.Box.Empty() {
				sr.EmptyBoxes++
			}
		}
		errs = append(errs, res.errs...)
	}

	return sr, errs, nil
}
