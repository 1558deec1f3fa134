// Package metadata reads the basic attributes of an uploaded file.
package metadata

import (
	"fmt"
	"time"

	"github.com/book-expert/doc-gateway-service/internal/artifact"
)

// timestampLayout mirrors the millisecond ISO-8601 form browsers produce for dates.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

const bytesPerKiloByte = 1024.0

// Info is the metadata returned to the caller.
type Info struct {
	FileName    string `json:"fileName"`
	Size        string `json:"size"`
	CreatedDate string `json:"createdDate"`
}

// Extract reads the display name, size and creation time of an artifact without
// modifying it. It fails with artifact.ErrNotFound once the file is gone.
func Extract(upload *artifact.Artifact) (Info, error) {
	info, statErr := upload.Stat()
	if statErr != nil {
		return Info{FileName: "", Size: "", CreatedDate: ""}, fmt.Errorf(
			"failed to read metadata: %w",
			statErr,
		)
	}

	created := upload.CreatedAt()
	if created.IsZero() {
		created = info.ModTime()
	}

	return Info{
		FileName:    upload.Name(),
		Size:        FormatSize(info.Size()),
		CreatedDate: created.UTC().Format(timestampLayout),
	}, nil
}

// FormatSize renders a byte count as kilobytes rounded to two decimals.
func FormatSize(sizeBytes int64) string {
	return fmt.Sprintf("%.2f KB", float64(sizeBytes)/bytesPerKiloByte)
}

// ParseCreated parses a CreatedDate value produced by Extract.
func ParseCreated(value string) (time.Time, error) {
	parsed, parseErr := time.Parse(timestampLayout, value)
	if parseErr != nil {
		return time.Time{}, fmt.Errorf("invalid created date %q: %w", value, parseErr)
	}

	return parsed, nil
}
