package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// ScheduleArchive keeps one Parquet file per refresh cycle with the raw
// schedule that was committed, so a bad upstream change can be diagnosed
// against exactly what earlier cycles saw.
type ScheduleArchive struct {
	DataDir string
}

// NewScheduleArchive creates an archive rooted at the given data directory.
func NewScheduleArchive(dataDir string) *ScheduleArchive {
	return &ScheduleArchive{DataDir: dataDir}
}

// ScheduleRecord is the Parquet schema for one archived calendar row.
type ScheduleRecord struct {
	Date       string `parquet:"date"`
	Name       string `parquet:"name"`
	Kind       string `parquet:"kind"`
	CloseAtMin int32  `parquet:"close_at_min"`
}

// Write stores the holiday set under <DataDir>/archive, named after the
// cycle's run time. It returns the file path.
func (a *ScheduleArchive) Write(runAt time.Time, holidays []domain.Holiday) (string, error) {
	records := make([]ScheduleRecord, 0, len(holidays))
	for _, h := range holidays {
		records = append(records, ScheduleRecord{
			Date:       h.Date,
			Name:       h.Name,
			Kind:       string(h.Kind),
			CloseAtMin: int32(h.CloseAt),
		})
	}

	path := a.path(runAt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return "", err
	}
	return path, nil
}

// Read loads an archived schedule back, mostly for tooling and tests.
func (a *ScheduleArchive) Read(runAt time.Time) ([]domain.Holiday, error) {
	records, err := parquet.ReadFile[ScheduleRecord](a.path(runAt))
	if err != nil {
		return nil, err
	}

	out := make([]domain.Holiday, 0, len(records))
	for _, r := range records {
		out = append(out, domain.Holiday{
			Date:    r.Date,
			Name:    r.Name,
			Kind:    domain.ClosureKind(r.Kind),
			CloseAt: domain.TimeOfDay(r.CloseAtMin),
		})
	}
	return out, nil
}

// path layout: <DataDir>/archive/<UTC run time>.parquet
func (a *ScheduleArchive) path(runAt time.Time) string {
	name := runAt.UTC().Format("2006-01-02T150405Z") + ".parquet"
	return filepath.Join(a.DataDir, "archive", name)
}
