package services

import (
	"strings"

	"github.com/dmitrijs2005/legalassist/internal/client/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// MaxUploadSize is the largest document accepted for analysis.
const MaxUploadSize int64 = 10 << 20

// Accepted upload MIME types: PDF, legacy Word and modern Word.
const (
	MimePDF  = "application/pdf"
	MimeDOC  = "application/msword"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var allowedMimeTypes = []any{MimePDF, MimeDOC, MimeDOCX}

func validateCredentials(c models.Credentials) error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.EmailFormat),
		validation.Field(&c.Password, validation.Required),
	)
}

func validateRegistration(r models.Registration) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
	)
}

// ValidateUpload checks a file before it is sent: size first, then type.
// The MIME type comparison ignores parameters such as "; charset=...".
func ValidateUpload(f models.UploadFile) error {
	if err := validation.Validate(f.Size, validation.Max(MaxUploadSize)); err != nil {
		return ErrFileTooLarge
	}

	mime, _, _ := strings.Cut(f.MimeType, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	if err := validation.Validate(mime, validation.Required, validation.In(allowedMimeTypes...)); err != nil {
		return ErrInvalidFileType
	}
	return nil
}
