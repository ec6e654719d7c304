package response

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// GenerateETag returns a strong ETag for content.
func GenerateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:16]) + `"`
}

// ParseIfNoneMatch splits an If-None-Match header into its entity tags.
func ParseIfNoneMatch(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if header == "*" {
		return []string{"*"}
	}

	var etags []string
	for i := 0; i < len(header); {
		for i < len(header) && (header[i] == ' ' || header[i] == ',') {
			i++
		}
		if i >= len(header) {
			break
		}

		weak := false
		if strings.HasPrefix(header[i:], "W/") {
			weak = true
			i += 2
		}

		if i >= len(header) || header[i] != '"' {
			// Skip anything that is not a quoted tag.
			for i < len(header) && header[i] != ',' {
				i++
			}
			continue
		}

		end := strings.IndexByte(header[i+1:], '"')
		if end < 0 {
			break
		}
		tag := header[i : i+end+2]
		if weak {
			tag = "W/" + tag
		}
		etags = append(etags, tag)
		i += end + 2
	}

	return etags
}

// MatchesETag reports whether etag matches any of etags under weak
// comparison.
func MatchesETag(etag string, etags []string) bool {
	if len(etags) == 1 && etags[0] == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, e := range etags {
		if strings.TrimPrefix(e, "W/") == want {
			return true
		}
	}
	return false
}

// NotModified reports whether r already holds the representation tagged
// etag.
func NotModified(r *http.Request, etag string) bool {
	header := r.Header.Get("If-None-Match")
	if header == "" {
		return false
	}
	return MatchesETag(etag, ParseIfNoneMatch(header))
}
