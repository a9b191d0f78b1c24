package queue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atlas-cloud/ragdex/internal/domain"
)

// payload is the decoded body of a queue message. Producers send either
// a direct filename or a storage event carrying the blob URL.
type payload struct {
	Filename string `json:"filename,omitempty"`
	Data     *struct {
		URL string `json:"url"`
	} `json:"data,omitempty"`
}

// encodeMessage packs a filename into the wire format: base64 over JSON.
func encodeMessage(filename string) string {
	data, _ := json.Marshal(payload{Filename: filename})
	return base64.StdEncoding.EncodeToString(data)
}

// decodeFilename extracts the target file name from a raw message body.
// A direct filename wins; a storage event URL falls back to the last
// three path segments (container/folder/file).
func decodeFilename(raw string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Producers are not required to encode; try the raw body.
		decoded = []byte(raw)
	}

	var p payload
	if err := json.Unmarshal(decoded, &p); err != nil {
		return "", fmt.Errorf("malformed queue message: %w: %w", err, domain.ErrBadInput)
	}

	if p.Filename != "" {
		return p.Filename, nil
	}

	if p.Data != nil && p.Data.URL != "" {
		return filenameFromURL(p.Data.URL), nil
	}

	return "", fmt.Errorf("queue message has no filename or data.url: %w", domain.ErrBadInput)
}

// filenameFromURL keeps the last three path segments of a blob URL so
// nested folder structure inside the container survives.
func filenameFromURL(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) <= 3 {
		return strings.Join(parts, "/")
	}
	return strings.Join(parts[len(parts)-3:], "/")
}
