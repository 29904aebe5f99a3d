package analytics

import (
	"sort"
	"strings"

	"fleet-insights/internal/models"
)

// maxSearchDepth bounds the download-URL walk; the remote schema is
// untrusted input.
const maxSearchDepth = 32

var cloudStorageDomains = []string{
	"storage.googleapis.com",
	"s3.amazonaws.com",
	"blob.core.windows.net",
}

// assemblePayload builds the result payload from a completed submission.
// Different fields may live on different sub-messages, so every message is
// scanned and the first occurrence of each field wins.
func assemblePayload(result map[string]interface{}) *models.ResultPayload {
	payload := &models.ResultPayload{}

	for _, msg := range subMessages(result) {
		if payload.Columns == nil {
			if cols, ok := msg["columns"].([]interface{}); ok {
				payload.Columns = toStringSlice(cols)
			}
		}
		if payload.Rows == nil {
			if rows, ok := msg["preview_rows"].([]interface{}); ok {
				payload.Rows = toRowSlice(rows)
			}
		}
		if payload.Reasoning == "" {
			if reasoning, ok := msg["reasoning"].(string); ok {
				payload.Reasoning = reasoning
			}
		}
		if payload.TotalRowCount == nil {
			if count, ok := msg["total_row_count"].(float64); ok {
				n := int(count)
				payload.TotalRowCount = &n
			}
		}
	}

	// The download URL's schema location is not guaranteed to be stable, so
	// search the entire response tree rather than a fixed path.
	payload.DownloadURL = findDownloadURL(result, 0)

	return payload
}

func subMessages(result map[string]interface{}) []map[string]interface{} {
	group, ok := result["message_group"].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := group["messages"].([]interface{})
	if !ok {
		return nil
	}
	msgs := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if msg, ok := item.(map[string]interface{}); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// findDownloadURL walks the decoded response tree depth-first and returns
// the first string that looks like a result-export URL. Map keys are visited
// in sorted order so the answer is deterministic.
func findDownloadURL(node interface{}, depth int) string {
	if depth > maxSearchDepth {
		return ""
	}
	switch v := node.(type) {
	case string:
		if isDownloadURL(v) {
			return v
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if found := findDownloadURL(v[k], depth+1); found != "" {
				return found
			}
		}
	case []interface{}:
		for _, item := range v {
			if found := findDownloadURL(item, depth+1); found != "" {
				return found
			}
		}
	}
	return ""
}

func isDownloadURL(s string) bool {
	if !strings.HasPrefix(s, "https://") {
		return false
	}
	if strings.Contains(s, ".csv") {
		return true
	}
	for _, domain := range cloudStorageDomains {
		if strings.Contains(s, domain) {
			return true
		}
	}
	return false
}

func toStringSlice(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toRowSlice(items []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if row, ok := item.(map[string]interface{}); ok {
			out = append(out, row)
		}
	}
	return out
}
