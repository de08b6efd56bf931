// Package request reads the model files uploaded to the migration API
package request

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/conduit-lang/modelmig/internal/batch"
)

// ModelFilesField is the multipart field carrying the documents
const ModelFilesField = "modelFiles"

// maxMemory bounds the part of a form kept in memory; the rest spills to disk
const maxMemory = 32 << 20

var (
	// ErrNoFiles is returned when the form has no model files
	ErrNoFiles = errors.New("no files uploaded for field " + ModelFilesField)
	// ErrTooLarge is returned when the request body exceeds the upload limit
	ErrTooLarge = errors.New("upload exceeds the size limit")
)

// UnsafeFilenameError is returned for filenames that are not a single path element
type UnsafeFilenameError struct {
	Filename string
}

func (e *UnsafeFilenameError) Error() string {
	return fmt.Sprintf("unsafe filename %q", e.Filename)
}

// ReadModelFiles parses a multipart upload and returns the files of the
// modelFiles field in upload order. The whole body is limited to maxBytes.
func ReadModelFiles(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]batch.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	headers := r.MultipartForm.File[ModelFilesField]
	if len(headers) == 0 {
		return nil, ErrNoFiles
	}

	files := make([]batch.File, 0, len(headers))
	for _, header := range headers {
		if err := checkFilename(header.Filename); err != nil {
			return nil, err
		}

		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
		}

		files = append(files, batch.File{Name: header.Filename, Data: data})
	}
	return files, nil
}

func checkFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return &UnsafeFilenameError{Filename: name}
	}
	return nil
}
