package upload

import (
	"errors"
	"mime"
	"strings"

	"notedrop/internal/auth"
)

// ErrFileType is returned when an uploaded file's MIME type is not on
// the allow-list for the uploader's role.
var ErrFileType = errors.New("invalid file type")

// baseTypes is what ordinary uploaders may submit.
var baseTypes = map[string]string{
	"application/pdf": "pdf",
}

// elevatedTypes extends the allow-list for developer and admin roles.
var elevatedTypes = map[string]string{
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"text/plain":      "txt",
	"application/zip": "zip",
}

// AcceptFileType checks a MIME type against the role's allow-list and
// returns the canonical extension. The check is independent of schema
// validation and runs per item.
func AcceptFileType(mimeType string, role auth.Role) (string, error) {
	// Strip any parameters (charset etc.) from the declared type.
	parsed, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		parsed = strings.ToLower(strings.TrimSpace(mimeType))
	}

	allowed := baseTypes
	if role.AtLeast(auth.RoleAdmin) {
		allowed = elevatedTypes
	}

	ext, ok := allowed[parsed]
	if !ok {
		return "", ErrFileType
	}
	return ext, nil
}
