package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/justapithecus/tether/types"
)

// RuntimeHint is the on-disk schema for the preferred-runtime hint.
// Written to $XDG_RUNTIME_DIR/tether/runtime.json after each successful
// assignment; consulted first on reuse so consecutive invocations land
// on the same runtime.
type RuntimeHint struct {
	RuntimeID  string        `json:"runtime_id"`
	Variant    types.Variant `json:"variant"`
	AssignedAt string        `json:"assigned_at"`
}

// hintDir returns the directory for the hint file.
// Uses $XDG_RUNTIME_DIR/tether/ on Linux, falls back to $TMPDIR/tether-$UID/.
func hintDir() (string, error) {
	var dir string
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		dir = filepath.Join(xdg, "tether")
	} else {
		dir = filepath.Join(os.TempDir(), fmt.Sprintf("tether-%d", os.Getuid()))
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create hint dir %s: %w", dir, err)
	}
	return dir, nil
}

// readHint reads the preferred-runtime hint, if any.
func readHint(path string) (*RuntimeHint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var hint RuntimeHint
	if err := json.Unmarshal(data, &hint); err != nil {
		return nil, fmt.Errorf("parse hint: %w", err)
	}
	if hint.RuntimeID == "" {
		return nil, errors.New("hint file missing runtime_id")
	}
	return &hint, nil
}

// writeHint atomically writes the preferred-runtime hint.
func writeHint(path string, hint *RuntimeHint) error {
	data, err := json.MarshalIndent(hint, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file, then rename for atomicity
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// recordHint persists the assignment as the new preferred runtime.
// Failures are non-fatal: the hint is an optimization, not state.
func recordHint(path string, assigned *types.AssignedRuntime) error {
	return writeHint(path, &RuntimeHint{
		RuntimeID:  assigned.ID,
		Variant:    assigned.Variant,
		AssignedAt: time.Now().UTC().Format(time.RFC3339),
	})
}
