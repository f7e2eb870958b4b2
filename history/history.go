// Package history stores and loads records of previous page runs and
// systrace captures.
package history

// This file contains shared history utilities for loading and looking up
// recorded runs.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/perfgo/pagerunner/model"
	"github.com/rs/zerolog"
)

const (
	// DirName is the history directory created at the repository root.
	DirName = ".pagerunner"

	historyFile = "history.json"
)

type Entry struct {
	History  model.History
	FullPath string
}

// ShortID returns the first 8 characters of the entry ID.
func (e *Entry) ShortID() string {
	return shorten(e.History.ID)
}

// repoRoot returns the top level directory of the git repository in dir.
func repoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not in a git repository: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// ResolveRoot returns the history root: configured when set, otherwise the
// .pagerunner directory at the root of the current git repository.
func ResolveRoot(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := repoRoot(cwd)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, DirName), nil
}

// LoadEntries loads all history entries below root. Entries that cannot be
// parsed are skipped with a warning.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no runs recorded in %s", root)
	}

	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			historyPath := filepath.Join(path, historyFile)
			if _, err := os.Stat(historyPath); err == nil {
				history, err := parseHistoryJSON(historyPath)
				if err != nil {
					logger.Warn().Err(err).Str("path", historyPath).Msg("Failed to parse history.json")
					return nil
				}

				entries = append(entries, Entry{
					History:  history,
					FullPath: path,
				})
			}
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	SortNewestFirst(entries)
	return entries, nil
}

// SortNewestFirst orders entries by timestamp, newest first.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].History.Timestamp.After(entries[j].History.Timestamp)
	})
}

// Find looks up an entry in entries sorted newest first. arg is either an
// index counting back from the newest run (0 newest, -1 the one before) or
// a prefix of the entry ID.
func Find(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, errors.New("no history entries found")
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d history entries)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].History.ID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no history entry found matching ID: %s", arg)
}

// Filter returns the entries whose working directory contains path and,
// when typ is set, whose type matches.
func Filter(entries []Entry, path string, typ model.HistoryType) []Entry {
	var out []Entry
	for _, e := range entries {
		if path != "" && !strings.Contains(e.History.WorkDir, path) {
			continue
		}
		if typ != "" && e.History.Type != typ {
			continue
		}
		out = append(out, e)
	}
	return out
}

// parseHistoryJSON parses a history.json file.
func parseHistoryJSON(historyPath string) (model.History, error) {
	data, err := os.ReadFile(historyPath)
	if err != nil {
		return model.History{}, err
	}

	var history model.History
	if err := json.Unmarshal(data, &history); err != nil {
		return model.History{}, err
	}

	return history, nil
}

func shorten(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
