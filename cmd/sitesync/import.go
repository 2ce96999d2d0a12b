package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/sitesync"
)

// representationDoc is the file form of a representation. JSON files decode
// through the same YAML decoder.
type representationDoc struct {
	ID             string    `yaml:"id"`
	Asset          string    `yaml:"asset"`
	Subset         string    `yaml:"subset"`
	Version        int       `yaml:"version"`
	Representation string    `yaml:"representation"`
	Files          []fileDoc `yaml:"files"`
}

type fileDoc struct {
	ID    string    `yaml:"id"`
	Path  string    `yaml:"path"`
	Size  int64     `yaml:"size"`
	Sites []siteDoc `yaml:"sites"`
}

type siteDoc struct {
	Name         string   `yaml:"name"`
	CreatedAt    string   `yaml:"created_dt"`
	Progress     *float64 `yaml:"progress"`
	LastFailedAt string   `yaml:"last_failed_dt"`
	Error        string   `yaml:"error"`
	Tries        *int     `yaml:"tries"`
}

// parseTime reads an RFC 3339 timestamp; empty means unset.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func (d representationDoc) representation() (sitesync.Representation, error) {
	if d.ID == "" {
		return sitesync.Representation{}, errors.New("representation without id")
	}
	r := sitesync.Representation{
		ID: d.ID,
		Context: sitesync.Context{
			Asset:          d.Asset,
			Subset:         d.Subset,
			Version:        d.Version,
			Representation: d.Representation,
		},
	}
	for _, f := range d.Files {
		if f.ID == "" {
			return sitesync.Representation{}, fmt.Errorf("representation %s: file without id", d.ID)
		}
		file := sitesync.File{ID: f.ID, Path: f.Path, Size: f.Size}
		for _, s := range f.Sites {
			created, err := parseTime(s.CreatedAt)
			if err != nil {
				return sitesync.Representation{}, fmt.Errorf("file %s site %s: created_dt: %w", f.ID, s.Name, err)
			}
			failed, err := parseTime(s.LastFailedAt)
			if err != nil {
				return sitesync.Representation{}, fmt.Errorf("file %s site %s: last_failed_dt: %w", f.ID, s.Name, err)
			}
			file.Sites = append(file.Sites, sitesync.FileSite{
				Name:         s.Name,
				CreatedAt:    created,
				Progress:     s.Progress,
				LastFailedAt: failed,
				Error:        s.Error,
				Tries:        s.Tries,
			})
		}
		r.Files = append(r.Files, file)
	}
	return r, nil
}

// parseRepresentations decodes one or more YAML documents, each holding a
// list of representations.
func parseRepresentations(data []byte) ([]sitesync.Representation, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var out []sitesync.Representation
	for {
		var docs []representationDoc
		err := dec.Decode(&docs)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode representations: %w", err)
		}
		for _, d := range docs {
			r, err := d.representation()
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func loadRepresentations(path string) ([]sitesync.Representation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRepresentations(data)
}
