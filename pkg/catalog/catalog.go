package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Load reads the catalog file and indexes its entries by key.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw QueryCatalog
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("catalog %s is not valid JSON: %w", path, err)
	}

	byKey := make(map[string]QueryEntry, len(raw.Queries))
	for _, entry := range raw.Queries {
		if entry.Key == "" {
			return nil, fmt.Errorf("catalog %s contains an entry without a key", path)
		}
		if entry.Question == "" {
			return nil, fmt.Errorf("catalog entry %q has no question", entry.Key)
		}
		if _, dup := byKey[entry.Key]; dup {
			return nil, fmt.Errorf("catalog entry %q is duplicated", entry.Key)
		}
		if entry.TTL != "" {
			if _, err := time.ParseDuration(entry.TTL); err != nil {
				return nil, fmt.Errorf("catalog entry %q has invalid ttl %q: %w", entry.Key, entry.TTL, err)
			}
		}
		byKey[entry.Key] = entry
	}

	return &Catalog{raw: raw, byKey: byKey}, nil
}

// Catalog is the loaded, validated query catalog.
type Catalog struct {
	raw   QueryCatalog
	byKey map[string]QueryEntry
}

// Lookup returns the entry for key.
func (c *Catalog) Lookup(key string) (QueryEntry, error) {
	entry, ok := c.byKey[key]
	if !ok {
		return QueryEntry{}, fmt.Errorf("unknown query key %q", key)
	}
	return entry, nil
}

// Keys returns every key in catalog-file order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.raw.Queries))
	for _, entry := range c.raw.Queries {
		keys = append(keys, entry.Key)
	}
	return keys
}

// TTLDuration returns the entry's cache TTL, or zero when the call site should use
// its own default.
func (e QueryEntry) TTLDuration() time.Duration {
	if e.TTL == "" {
		return 0
	}
	d, _ := time.ParseDuration(e.TTL)
	return d
}

// ValidateResult checks a result payload against the entry's declared
// schema. Entries without a schema accept anything.
func (e QueryEntry) ValidateResult(payload []byte) error {
	if e.ResultSchema == nil {
		return nil
	}
	schemaLoader := gojsonschema.NewGoLoader(e.ResultSchema)
	docLoader := gojsonschema.NewBytesLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation for %q: %w", e.Key, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("result for %q does not match its schema: %s", e.Key, strings.Join(msgs, "; "))
	}
	return nil
}
