package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validCatalog = `{
  "version": "1.0.0",
  "queries": [
    {
      "key": "fleet-utilization-30d",
      "question": "What was fleet utilization over 30 days?",
      "fallbackFile": "fleet-utilization-30d.json",
      "ttl": "1h",
      "resultSchema": {
        "type": "object",
        "properties": {
          "columns": {"type": "array", "items": {"type": "string"}},
          "rows": {"type": "array", "items": {"type": "object"}}
        },
        "required": ["columns", "rows"]
      }
    },
    {
      "key": "idle-time-by-depot-7d",
      "question": "How much idle time per depot over 7 days?"
    }
  ]
}`

func TestLoad_ValidCatalog(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog))
	require.NoError(t, err)

	assert.Equal(t, []string{"fleet-utilization-30d", "idle-time-by-depot-7d"}, cat.Keys())

	entry, err := cat.Lookup("fleet-utilization-30d")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, entry.TTLDuration())

	noTTL, err := cat.Lookup("idle-time-by-depot-7d")
	require.NoError(t, err)
	assert.Zero(t, noTTL.TTLDuration(), "entries without a ttl defer to the call site default")
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing key",
			content: `{"queries":[{"question":"q"}]}`,
			wantErr: "without a key",
		},
		{
			name:    "missing question",
			content: `{"queries":[{"key":"k"}]}`,
			wantErr: "no question",
		},
		{
			name:    "duplicate key",
			content: `{"queries":[{"key":"k","question":"a"},{"key":"k","question":"b"}]}`,
			wantErr: "duplicated",
		},
		{
			name:    "invalid ttl",
			content: `{"queries":[{"key":"k","question":"q","ttl":"soon"}]}`,
			wantErr: "invalid ttl",
		},
		{
			name:    "not json",
			content: `not json at all`,
			wantErr: "not valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCatalog(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLookup_UnknownKey(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog))
	require.NoError(t, err)

	_, err = cat.Lookup("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown query key "nope"`)
}

func TestValidateResult(t *testing.T) {
	cat, err := Load(writeCatalog(t, validCatalog))
	require.NoError(t, err)

	withSchema, err := cat.Lookup("fleet-utilization-30d")
	require.NoError(t, err)

	assert.NoError(t, withSchema.ValidateResult([]byte(`{"columns":["a"],"rows":[{"a":1}]}`)))

	err = withSchema.ValidateResult([]byte(`{"rows":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match its schema")

	withoutSchema, err := cat.Lookup("idle-time-by-depot-7d")
	require.NoError(t, err)
	assert.NoError(t, withoutSchema.ValidateResult([]byte(`"anything"`)))
}
