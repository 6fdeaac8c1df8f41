package blobstore

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
)

const (
	msgInvalidType = "Invalid file type. Only JPEG, PNG, and PDF are allowed."
	msgTooLarge    = "File too large. Maximum size is 5MB."
	msgTooMany     = "Too many files. Maximum is 10."
)

// IsMultipart reports whether the request body is multipart/form-data.
func IsMultipart(c echo.Context) bool {
	mt, _, err := mime.ParseMediaType(c.Request().Header.Get(echo.HeaderContentType))
	return err == nil && mt == echo.MIMEMultipartForm
}

// FromMultipart validates the files under field and returns them as uploads.
// A non-multipart request yields no uploads. The returned closer releases
// the opened files and must be called once the uploads are stored.
func FromMultipart(c echo.Context, field string) ([]Upload, func(), error) {
	noop := func() {}
	if !IsMultipart(c) {
		return nil, noop, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, apperr.Validation("Invalid multipart body.")
	}

	headers := form.File[field]
	if len(headers) > MaxFiles {
		return nil, noop, apperr.Validation(msgTooMany, apperr.FieldError{Field: field, Message: msgTooMany})
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > MaxFileSize {
			closeAll()
			return nil, noop, apperr.Validation(msgTooLarge, apperr.FieldError{Field: field, Message: fh.Filename + ": " + msgTooLarge})
		}
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, apperr.Internal(fmt.Errorf("open upload %s: %w", fh.Filename, err))
		}
		opened = append(opened, f)

		ct, err := contentTypeOf(fh, f)
		if err != nil {
			closeAll()
			return nil, noop, apperr.Internal(err)
		}
		if !AllowedContentTypes[ct] {
			closeAll()
			return nil, noop, apperr.Validation(msgInvalidType, apperr.FieldError{Field: field, Message: fh.Filename + ": " + msgInvalidType})
		}

		uploads = append(uploads, Upload{
			FileName:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}

// contentTypeOf sniffs the first bytes of the file. A declared part type
// other than application/octet-stream must agree with the sniffed one; a
// mismatch yields "".
func contentTypeOf(fh *multipart.FileHeader, f multipart.File) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("sniff %s: %w", fh.Filename, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind %s: %w", fh.Filename, err)
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(buf[:n]))

	declared := strings.ToLower(strings.TrimSpace(fh.Header.Get(echo.HeaderContentType)))
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	if declared != "" && declared != echo.MIMEOctetStream && declared != sniffed {
		return "", nil
	}
	return sniffed, nil
}

// StoreError converts a DocumentStore failure into the error taxonomy.
func StoreError(err error) error {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return apperr.Validation(msgTooLarge)
	case errors.Is(err, ErrInvalidContentType):
		return apperr.Validation(msgInvalidType)
	case errors.Is(err, ErrMissingFileName):
		return apperr.Validation("File name is required.")
	default:
		return apperr.Unavailable(err)
	}
}
