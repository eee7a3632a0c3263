package youtube

import "strings"

const videoIDLength = 11

// ExtractVideoID accepts watch URLs (v=), short youtu.be links and bare ids.
func ExtractVideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)

	if pos := strings.Index(raw, "v="); pos >= 0 {
		id := raw[pos+2:]
		if end := strings.IndexByte(id, '&'); end >= 0 {
			id = id[:end]
		}
		return id, id != ""
	}

	if pos := strings.Index(raw, "youtu.be/"); pos >= 0 {
		id := raw[pos+len("youtu.be/"):]
		if end := strings.IndexAny(id, "?&#"); end >= 0 {
			id = id[:end]
		}
		return id, id != ""
	}

	if len(raw) == videoIDLength && !strings.ContainsAny(raw, "/?=:. ") {
		return raw, true
	}
	return "", false
}
