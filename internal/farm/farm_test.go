package farm

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, doc string) Settings {
	t.Helper()
	s, err := ParseSettings([]byte(doc))
	require.NoError(t, err)
	return s
}

func TestNewResolver_ActiveModule(t *testing.T) {
	tests := []struct {
		name    string
		system  string
		want    string
		wantErr error
	}{
		{
			name:   "deadline only",
			system: "modules:\n  deadline: {enabled: true}\n  muster: {enabled: false}\n",
			want:   "deadline",
		},
		{
			name:   "royalrender only",
			system: "modules:\n  royalrender: {enabled: true}\n",
			want:   "royalrender",
		},
		{
			name:    "none enabled",
			system:  "modules:\n  deadline: {enabled: false}\n",
			wantErr: ErrNoActiveFarm,
		},
		{
			name:    "no modules section",
			system:  "",
			wantErr: ErrNoActiveFarm,
		},
		{
			name:    "two enabled",
			system:  "modules:\n  deadline: {enabled: true}\n  muster: {enabled: true}\n",
			wantErr: ErrMultipleActiveFarms,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(parse(t, tt.system), Settings{})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.ActiveFarmModule())
		})
	}
}

func TestResolver_FromFiles(t *testing.T) {
	system, err := LoadSettings(filepath.Join("testdata", "system.yaml"))
	require.NoError(t, err)
	project, err := LoadSettings(filepath.Join("testdata", "project.yaml"))
	require.NoError(t, err)

	r, err := NewResolver(system, project)
	require.NoError(t, err)

	plugin, err := r.Plugin()
	require.NoError(t, err)
	assert.Equal(t, "NukeSubmitDeadline", plugin)

	attrs, err := r.RenderingAttributes()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"chunk_size": 10, "priority": 50, "concurrent_tasks": 2}, attrs)

	params, err := r.SubmissionParams()
	require.NoError(t, err)
	assert.Equal(t, SubmissionParams{ChunkSize: 10, Priority: 50, ConcurrentTasks: 2}, params)
}

func TestResolver_MissingKeysAreWarnedAndSkipped(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	system := parse(t, "modules:\n  deadline: {enabled: true}\n")
	project := parse(t, "deadline:\n  publish:\n    NukeSubmitDeadline:\n      priority: \"75\"\n")

	r, err := NewResolver(system, project, WithLogger(logger))
	require.NoError(t, err)

	attrs, err := r.RenderingAttributes()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"priority": "75"}, attrs)
	assert.Contains(t, logs.String(), "farm_key_missing")
	assert.Contains(t, logs.String(), "key=chunk_size")
	assert.Contains(t, logs.String(), "key=concurrent_tasks")

	params, err := r.SubmissionParams()
	require.NoError(t, err)
	assert.Equal(t, SubmissionParams{Priority: 75}, params)
}

func TestResolver_PluginNotFound(t *testing.T) {
	system := parse(t, "modules:\n  muster: {enabled: true}\n")
	r, err := NewResolver(system, Settings{})
	require.NoError(t, err)

	_, err = r.Plugin()
	assert.ErrorIs(t, err, ErrFarmPluginNotFound)
	_, err = r.RenderingAttributes()
	assert.ErrorIs(t, err, ErrFarmPluginNotFound)

	r, err = NewResolver(parse(t, "modules:\n  deadline: {enabled: true}\n"), Settings{}, WithHost("maya"))
	require.NoError(t, err)
	_, err = r.Plugin()
	assert.ErrorIs(t, err, ErrFarmPluginNotFound)
}

func TestResolver_MissingProjectSection(t *testing.T) {
	r, err := NewResolver(parse(t, "modules:\n  deadline: {enabled: true}\n"), Settings{})
	require.NoError(t, err)
	_, err = r.RenderingAttributes()
	assert.ErrorIs(t, err, ErrFarmPluginNotFound)
}

func TestResolver_InvalidValue(t *testing.T) {
	system := parse(t, "modules:\n  deadline: {enabled: true}\n")
	project := parse(t, "deadline:\n  publish:\n    NukeSubmitDeadline:\n      chunk_size: 2.5\n")
	r, err := NewResolver(system, project)
	require.NoError(t, err)

	_, err = r.SubmissionParams()
	assert.ErrorIs(t, err, ErrInvalidSetting)
}

func TestSettings_Lookup(t *testing.T) {
	s := parse(t, "a:\n  b:\n    c: 1\n  flag: true\n")

	v, ok := s.Lookup("a", "b", "c")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = s.Lookup("a", "b", "c", "d")
	assert.False(t, ok)
	_, ok = s.Section("a", "flag")
	assert.False(t, ok)
	assert.True(t, s.Bool("a", "flag"))
	assert.False(t, s.Bool("a", "missing"))
}
