package catalog

import "strings"

// ImageResolver maps object-storage keys to displayable URLs. Keys live
// under a fixed prefix and resolve by plain base-URL concatenation;
// missing keys fall back to the placeholder image.
type ImageResolver struct {
	BaseURL     string
	Prefix      string
	Placeholder string
}

// URL resolves one image key. Keys that already look like absolute
// URLs pass through untouched, matching what the item API returns for
// older records.
func (r ImageResolver) URL(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return r.Placeholder
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key
	}
	base := strings.TrimRight(r.BaseURL, "/")
	prefix := strings.Trim(r.Prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" || strings.HasPrefix(key, prefix+"/") {
		return base + "/" + key
	}
	return base + "/" + prefix + "/" + key
}
