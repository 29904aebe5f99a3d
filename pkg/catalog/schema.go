package catalog

// QueryCatalog is the versioned set of named queries the system knows how to
// run, loaded from a JSON file.
type QueryCatalog struct {
	Version     string       `json:"version"`
	LastUpdated string       `json:"lastUpdated"`
	Queries     []QueryEntry `json:"queries"`
}

// QueryEntry maps a semantic key to the natural-language question sent to
// the analytics service, plus its fallback filename, cache TTL and an
// optional JSON Schema the result payload must satisfy.
type QueryEntry struct {
	Key          string                 `json:"key"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Question     string                 `json:"question"`
	FallbackFile string                 `json:"fallbackFile"`
	TTL          string                 `json:"ttl"`
	ResultSchema map[string]interface{} `json:"resultSchema,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
}
