package step

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load discovers step files under dir by the *.step.<ext> filename pattern.
// Since a Go process cannot import another language's module to read its
// exported config record, each handler file "foo.step.py" is paired with a
// manifest "foo.step.json" holding the exported config record verbatim as
// JSON; Load reads the manifest and pairs it with the handler file path,
// leaving FilePath pointing at the executable handler, not the manifest.
func Load(dir string) ([]*Step, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("step: read steps dir %s: %w", dir, err)
	}

	var steps []*Step
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".step.json") {
			continue
		}
		manifestPath := filepath.Join(dir, entry.Name())
		handlerPath, err := siblingHandler(dir, entry.Name())
		if err != nil {
			return nil, err
		}

		raw, err := os.ReadFile(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("step: read manifest %s: %w", manifestPath, err)
		}
		var cfg Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("step: parse manifest %s: %w", manifestPath, err)
		}

		handlerBytes, err := os.ReadFile(handlerPath)
		if err != nil {
			return nil, fmt.Errorf("step: read handler %s: %w", handlerPath, err)
		}

		steps = append(steps, &Step{FilePath: handlerPath, Version: contentVersion(raw, handlerBytes), Config: cfg})
	}
	return steps, nil
}

// siblingHandler finds the "foo.step.<ext>" file paired with manifest
// "foo.step.json" within dir, rejecting ambiguous or missing pairings.
func siblingHandler(dir, manifestName string) (string, error) {
	base := strings.TrimSuffix(manifestName, ".json")
	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return "", fmt.Errorf("step: glob handler for %s: %w", manifestName, err)
	}

	var handlers []string
	for _, m := range matches {
		if filepath.Base(m) == manifestName {
			continue
		}
		handlers = append(handlers, m)
	}
	switch len(handlers) {
	case 0:
		return "", fmt.Errorf("step: no handler file found for manifest %s", manifestName)
	case 1:
		return handlers[0], nil
	default:
		return "", fmt.Errorf("step: ambiguous handler files for manifest %s: %v", manifestName, handlers)
	}
}

// contentVersion hashes a step's manifest and handler contents together so a
// caller watching the filesystem can detect a change by comparing Version
// across reloads without diffing file contents itself.
func contentVersion(manifest, handler []byte) string {
	h := sha256.New()
	h.Write(manifest)
	h.Write(handler)
	return hex.EncodeToString(h.Sum(nil))
}
