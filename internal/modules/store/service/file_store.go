package service

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/bytedance/sonic"

	"position_engine/internal/apperr"
	"position_engine/internal/helper"
	"position_engine/internal/models"
)

// FileStore keeps all positions in one JSON object keyed by symbol and the
// safety state in a second file. Every write replaces the file atomically.
type FileStore struct {
	mu         sync.Mutex
	path       string
	safetyPath string
}

func NewFileStore(path, safetyPath string) *FileStore {
	if path == "" {
		path = "active_positions.json"
	}
	if safetyPath == "" {
		safetyPath = "safety_state.json"
	}
	return &FileStore{path: path, safetyPath: safetyPath}
}

func (f *FileStore) readAll() (map[string]models.PositionRecord, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]models.PositionRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]models.PositionRecord{}, nil
	}

	all := map[string]models.PositionRecord{}
	if err := sonic.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (f *FileStore) writeAll(all map[string]models.PositionRecord) error {
	data, err := sonic.ConfigStd.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return helper.WriteFileAtomic(f.path, data)
}

func (f *FileStore) Save(_ context.Context, symbol string, rec models.PositionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		return apperr.New(apperr.KindStorage, "file.Save", symbol, err)
	}
	all[symbol] = rec
	if err := f.writeAll(all); err != nil {
		return apperr.New(apperr.KindStorage, "file.Save", symbol, err)
	}
	return nil
}

func (f *FileStore) Load(_ context.Context, symbol string) (models.PositionRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		return models.PositionRecord{}, false, apperr.New(apperr.KindStorage, "file.Load", symbol, err)
	}
	rec, ok := all[symbol]
	return rec, ok, nil
}

func (f *FileStore) LoadAll(context.Context) (map[string]models.PositionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		return nil, apperr.New(apperr.KindStorage, "file.LoadAll", "", err)
	}
	return all, nil
}

func (f *FileStore) Remove(_ context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.readAll()
	if err != nil {
		return apperr.New(apperr.KindStorage, "file.Remove", symbol, err)
	}
	if _, ok := all[symbol]; !ok {
		return nil
	}
	delete(all, symbol)
	if err := f.writeAll(all); err != nil {
		return apperr.New(apperr.KindStorage, "file.Remove", symbol, err)
	}
	return nil
}

func (f *FileStore) ClearAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeAll(map[string]models.PositionRecord{}); err != nil {
		return apperr.New(apperr.KindStorage, "file.ClearAll", "", err)
	}
	return nil
}

func (f *FileStore) LoadSafety(context.Context) (models.SafetyState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.safetyPath)
	if errors.Is(err, os.ErrNotExist) {
		return models.SafetyState{}, false, nil
	}
	if err != nil {
		return models.SafetyState{}, false, apperr.New(apperr.KindStorage, "file.LoadSafety", "", err)
	}

	var st models.SafetyState
	if err := sonic.Unmarshal(data, &st); err != nil {
		return models.SafetyState{}, false, apperr.New(apperr.KindStorage, "file.LoadSafety", "", err)
	}
	return st, true, nil
}

func (f *FileStore) SaveSafety(_ context.Context, st models.SafetyState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := sonic.ConfigStd.MarshalIndent(st, "", "  ")
	if err != nil {
		return apperr.New(apperr.KindStorage, "file.SaveSafety", "", err)
	}
	if err := helper.WriteFileAtomic(f.safetyPath, data); err != nil {
		return apperr.New(apperr.KindStorage, "file.SaveSafety", "", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
