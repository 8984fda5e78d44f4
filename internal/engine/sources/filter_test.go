package sources

import (
	"testing"
	"time"

	"github.com/infracollect/s3zip/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilter(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "empty", expr: ""},
		{name: "name suffix", expr: `name.endsWith(".json")`},
		{name: "size and key", expr: `size < 1024 && key.startsWith("exports/")`},
		{name: "modified", expr: `modified > timestamp("2024-01-01T00:00:00Z")`},
		{name: "syntax error", expr: `name.endsWith(`, wantErr: true},
		{name: "unknown variable", expr: `owner == "me"`, wantErr: true},
		{name: "not a bool", expr: `size + 1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFilter(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestFilter_Apply(t *testing.T) {
	objects := []engine.Object{
		{Key: "exports/a.json", Name: "a.json", Size: 10, LastModified: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "exports/b.txt", Name: "b.txt", Size: 2048, LastModified: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "exports/c.json", Name: "c.json", Size: 4096, LastModified: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	}

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{name: "match all", expr: "", want: []string{"a.json", "b.txt", "c.json"}},
		{name: "by extension", expr: `name.endsWith(".json")`, want: []string{"a.json", "c.json"}},
		{name: "by size", expr: `size >= 2048`, want: []string{"b.txt", "c.json"}},
		{name: "by date", expr: `modified < timestamp("2024-01-01T00:00:00Z")`, want: []string{"a.json"}},
		{name: "none", expr: `key.contains("missing")`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := NewFilter(tt.expr)
			require.NoError(t, err)

			matched, err := filter.Apply(objects)
			require.NoError(t, err)

			names := make([]string, 0, len(matched))
			for _, obj := range matched {
				names = append(names, obj.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
