package workfiles

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// maxVersionProbes bounds the search for a free file name.
const maxVersionProbes = 100

// ErrNoFreeVersion is returned when no free file name was found after
// probing successive versions.
var ErrNoFreeVersion = errors.New("no free work file version")

// LastVersion returns the highest version among files in root that tpl
// produces from data, and that file's name. Version 0 means none exist.
func LastVersion(root string, tpl *Template, data Data, extensions []string) (int, string, error) {
	re, err := tpl.versionPattern(data, extensions)
	if err != nil {
		return 0, "", err
	}

	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("list work files: %w", err)
	}

	last, name := 0, ""
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > last {
			last, name = v, e.Name()
		}
	}
	return last, name, nil
}

// NextVersion returns the version after LastVersion and the file name it
// formats to. When that name is taken, up to maxVersionProbes successive
// versions are tried.
func NextVersion(root string, tpl *Template, data Data, extensions []string, logger *slog.Logger) (int, string, error) {
	last, _, err := LastVersion(root, tpl, data, extensions)
	if err != nil {
		return 0, "", err
	}

	d := cloneData(data)
	version := last + 1
	for i := 0; i < maxVersionProbes; i++ {
		d["version"] = version
		name, err := tpl.Format(d)
		if err != nil {
			return 0, "", err
		}
		if _, err := os.Stat(filepath.Join(root, name)); errors.Is(err, os.ErrNotExist) {
			return version, name, nil
		}
		if i == 0 && logger != nil {
			logger.Warn("workfile_version_taken", "name", name, "last", last)
		}
		version++
	}
	return 0, "", fmt.Errorf("%w: after v%d", ErrNoFreeVersion, last)
}

func cloneData(d Data) Data {
	out := make(Data, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	return out
}
