package uploader

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run statuses.
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunFailed  = "failed"
	RunAborted = "aborted"
)

// Event statuses.
const (
	EventOK      = "ok"
	EventFailed  = "failed"
	EventSkipped = "skipped"
)

type RunEntry struct {
	ID          uint      `gorm:"primaryKey"`
	RunID       string    `gorm:"uniqueIndex;size:36"`
	Reason      string    `gorm:"index;size:64"`
	Stages      string    `gorm:"size:16"`
	ArchivePath string    `gorm:"size:1024"`
	StartedAt   time.Time `gorm:"index"`
	EndedAt     *time.Time
	Status      string `gorm:"index;size:16"` // running, ok, failed, aborted
	Error       string `gorm:"type:text"`
}

type StageEvent struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index;size:36"`
	Stage      string `gorm:"index;size:32"`
	Key        string `gorm:"column:record_key;index;size:512"`
	FileName   string `gorm:"size:512"`
	Status     string `gorm:"index;size:16"` // ok, failed, skipped
	StatusCode int
	Detail     string    `gorm:"type:text"`
	At         time.Time `gorm:"index"`
}

// Journal records runs and per-record stage outcomes in SQLite. A nil
// *Journal accepts every call and records nothing.
type Journal struct {
	db    *gorm.DB
	runID string
	now   func() time.Time
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		return nil, nil
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.AutoMigrate(&RunEntry{}, &StageEvent{}); err != nil {
		return nil, fmt.Errorf("migrate journal %s: %w", path, err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	err = sqlDB.Close()
	j.db = nil
	return err
}

// StartRun opens a run entry and returns its id.
func (j *Journal) StartRun(reason, stages, archivePath string) (string, error) {
	id := uuid.NewString()
	if j == nil || j.db == nil {
		return id, nil
	}
	entry := RunEntry{
		RunID:       id,
		Reason:      reason,
		Stages:      stages,
		ArchivePath: archivePath,
		StartedAt:   j.now().UTC(),
		Status:      RunRunning,
	}
	if err := j.db.Create(&entry).Error; err != nil {
		return id, fmt.Errorf("journal start run: %w", err)
	}
	j.runID = id
	return id, nil
}

// Record appends a stage event to the current run.
func (j *Journal) Record(ev StageEvent) error {
	if j == nil || j.db == nil {
		return nil
	}
	ev.ID = 0
	ev.RunID = j.runID
	if ev.At.IsZero() {
		ev.At = j.now().UTC()
	}
	if err := j.db.Create(&ev).Error; err != nil {
		return fmt.Errorf("journal record %s/%s: %w", ev.Stage, ev.Key, err)
	}
	return nil
}

// FinishRun closes the current run with status and the run error, if any.
func (j *Journal) FinishRun(status string, runErr error) error {
	if j == nil || j.db == nil || j.runID == "" {
		return nil
	}
	ended := j.now().UTC()
	updates := map[string]any{
		"ended_at": &ended,
		"status":   status,
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}
	if err := j.db.Model(&RunEntry{}).Where("run_id = ?", j.runID).Updates(updates).Error; err != nil {
		return fmt.Errorf("journal finish run: %w", err)
	}
	return nil
}

// History returns the latest runs, newest first.
func (j *Journal) History(limit int) ([]RunEntry, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var runs []RunEntry
	if err := j.db.Order("started_at desc, id desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// Events returns the events of one run in insertion order.
func (j *Journal) Events(runID string) ([]StageEvent, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	var events []StageEvent
	if err := j.db.Where("run_id = ?", runID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// LastEvent returns the most recent event for key and stage across runs.
func (j *Journal) LastEvent(key string, stage Stage) (*StageEvent, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	var ev StageEvent
	err := j.db.Where("record_key = ? AND stage = ?", key, stage.String()).Order("id desc").First(&ev).Error
	if err == nil {
		return &ev, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}

// FailedAttempts counts failed events for key and stage across runs.
func (j *Journal) FailedAttempts(key string, stage Stage) (int64, error) {
	if j == nil || j.db == nil {
		return 0, nil
	}
	var n int64
	err := j.db.Model(&StageEvent{}).Where("record_key = ? AND stage = ? AND status = ?", key, stage.String(), EventFailed).Count(&n).Error
	return n, err
}
