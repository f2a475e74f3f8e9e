package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Cursor is the persisted load position.
type Cursor struct {
	Stage          string    `json:"stage"`
	FileIndex      int       `json:"file_index"`
	RowOffset      int       `json:"row_offset"`
	TotalProcessed int       `json:"total_processed"`
	TotalFailed    int       `json:"total_failed"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// cursorTracker keeps the cursor in memory and writes it to disk every saveEvery rows.
// Batches finish out of order; the saved position only moves forward.
type cursorTracker struct {
	mu        sync.Mutex
	cursor    Cursor
	path      string
	saveEvery int
	sinceSave int
	dirty     bool
	logger    *zap.Logger
}

// newCursorTracker loads the previous cursor from dataDir if there is one.
func newCursorTracker(dataDir string, saveEvery int, logger *zap.Logger) (*cursorTracker, error) {
	if saveEvery <= 0 {
		saveEvery = 1
	}
	ct := &cursorTracker{
		path:      filepath.Join(filepath.Clean(dataDir), "cursor.json"),
		saveEvery: saveEvery,
		logger:    logger,
	}

	data, err := os.ReadFile(ct.path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &ct.cursor); err != nil {
			return nil, fmt.Errorf("parse cursor %s: %w", ct.path, err)
		}
		logger.Info("resume from cursor",
			zap.String("stage", ct.cursor.Stage),
			zap.Int("file", ct.cursor.FileIndex),
			zap.Int("offset", ct.cursor.RowOffset),
			zap.Int("processed", ct.cursor.TotalProcessed),
		)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read cursor %s: %w", ct.path, err)
	}
	return ct, nil
}

// Get returns a copy of the cursor.
func (ct *cursorTracker) Get() Cursor {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.cursor
}

// Advance records a finished batch ending before fileIndex/rowOffset.
func (ct *cursorTracker) Advance(fileIndex, rowOffset, processed, failed int) {
	ct.mu.Lock()
	if fileIndex > ct.cursor.FileIndex ||
		(fileIndex == ct.cursor.FileIndex && rowOffset > ct.cursor.RowOffset) {
		ct.cursor.FileIndex = fileIndex
		ct.cursor.RowOffset = rowOffset
	}
	ct.cursor.Stage = "profiles"
	ct.cursor.TotalProcessed += processed
	ct.cursor.TotalFailed += failed
	ct.cursor.UpdatedAt = time.Now()
	ct.dirty = true
	ct.sinceSave += processed + failed
	shouldSave := ct.sinceSave >= ct.saveEvery
	if shouldSave {
		ct.sinceSave = 0
	}
	ct.mu.Unlock()

	if shouldSave {
		ct.save()
	}
}

// Done marks the load finished and saves.
func (ct *cursorTracker) Done() {
	ct.mu.Lock()
	ct.cursor.Stage = "done"
	ct.cursor.UpdatedAt = time.Now()
	ct.dirty = true
	ct.mu.Unlock()
	ct.save()
}

// Reset clears the cursor and saves.
func (ct *cursorTracker) Reset() {
	ct.mu.Lock()
	ct.cursor = Cursor{}
	ct.sinceSave = 0
	ct.dirty = true
	ct.mu.Unlock()
	ct.save()
}

// save writes the cursor through a temp file and rename.
func (ct *cursorTracker) save() {
	ct.mu.Lock()
	if !ct.dirty {
		ct.mu.Unlock()
		return
	}
	data, err := json.MarshalIndent(ct.cursor, "", "  ")
	ct.dirty = false
	ct.mu.Unlock()
	if err != nil {
		ct.logger.Error("cursor marshal failed", zap.Error(err))
		return
	}

	tmp := ct.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err == nil {
		err = os.Rename(tmp, ct.path)
		if err == nil {
			return
		}
		ct.logger.Warn("cursor rename failed", zap.Error(err))
	} else {
		ct.logger.Warn("cursor write failed", zap.Error(err))
	}

	ct.mu.Lock()
	ct.dirty = true
	ct.mu.Unlock()
}
