// Package prefs keeps small per-user UI state between runs.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const selectionFile = "selection.json"

// Selection is the team and iteration the operator last looked at.
type Selection struct {
	Team      string `json:"team,omitempty"`
	Iteration string `json:"iteration,omitempty"`
}

func selectionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskcards", selectionFile), nil
}

// SaveSelection replaces the stored selection. Each call writes its own
// temp file and renames it into place, so concurrent callers never see a
// partial file; the last rename wins.
func SaveSelection(sel Selection) error {
	path, err := selectionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir prefs dir: %w", err)
	}
	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), selectionFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("save selection: %w", err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save selection: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save selection: %w", err)
	}
	return nil
}

// LoadSelection returns the zero Selection when nothing was saved yet.
func LoadSelection() (Selection, error) {
	path, err := selectionPath()
	if err != nil {
		return Selection{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Selection{}, nil
	}
	if err != nil {
		return Selection{}, err
	}
	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return Selection{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return sel, nil
}
