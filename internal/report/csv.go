// Package report renders delivery reports as CSV artifacts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"heraldbot/internal/store"
)

// Write renders rows as CSV: header user_id,delivered,read_time, one line
// per delivery record, read_time blank when unacknowledged.
func Write(w io.Writer, rows []store.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"user_id", "delivered", "read_time"}); err != nil {
		return err
	}
	for _, r := range rows {
		readTime := ""
		if r.ReadAt != nil {
			readTime = r.ReadAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			strconv.FormatInt(r.UserID, 10),
			strconv.FormatBool(r.Delivered),
			readTime,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile writes the report for mid into dir as report_<mid>.csv and
// returns the file path.
func ExportFile(dir string, mid int64, rows []store.ReportRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("report_%d.csv", mid))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Write(f, rows); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
