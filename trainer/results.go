package trainer

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Summary is the last epoch recorded in results.csv.
type Summary struct {
	Epoch     int
	Precision float64
	Recall    float64
	MAP50     float64
	MAP5095   float64
	// Columns holds every numeric column by its trimmed header.
	Columns map[string]float64
}

// ReadResults reads the final row of the framework's per-epoch metrics file.
//
// Arguments:
//   - path: The results.csv written by the framework.
//
// Returns:
//   - *Summary: The metrics of the last epoch.
//   - error: If the file is unreadable, has no data row, or lacks an epoch column.
func ReadResults(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening results")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading results header")
	}

	var last []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading results")
		}
		last = rec
	}
	if last == nil {
		return nil, errors.Errorf("%s has no epochs", path)
	}

	s := &Summary{Columns: make(map[string]float64, len(header))}
	for i, h := range header {
		if i >= len(last) {
			break
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(last[i]), 64)
		if err != nil {
			continue
		}
		s.Columns[strings.TrimSpace(h)] = v
	}

	epoch, ok := s.Columns["epoch"]
	if !ok {
		return nil, errors.Errorf("%s has no epoch column", path)
	}
	s.Epoch = int(epoch)
	s.Precision = s.Columns["metrics/precision(B)"]
	s.Recall = s.Columns["metrics/recall(B)"]
	s.MAP50 = s.Columns["metrics/mAP50(B)"]
	s.MAP5095 = s.Columns["metrics/mAP50-95(B)"]
	return s, nil
}
