package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
)

var pdfHeader = []byte("%PDF-")

// Validator checks a file before it is handed to the parsers
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile checks existence, extension, size and the %PDF- header.
// Failures match pdferrors.ErrInvalidDocument.
func (v *Validator) ValidateFile(filePath string) error {
	if err := v.validate(filePath); err != nil {
		return pdferrors.WrapError(pdferrors.ErrorTypeInvalidDocument, err).WithFile(filePath)
	}
	return nil
}

// IsValidPDF performs a quick check to see if a file is a valid PDF
func (v *Validator) IsValidPDF(filePath string) bool {
	return v.validate(filePath) == nil
}

func (v *Validator) validate(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if err := v.ValidateFileInfo(filePath, fileInfo); err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(pdfHeader))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, pdfHeader) {
		return fmt.Errorf("file is not a PDF (missing %%PDF- header): %s", filePath)
	}
	return nil
}

// ValidateFileInfo performs basic validation on file info without opening the PDF
func (v *Validator) ValidateFileInfo(filePath string, fileInfo os.FileInfo) error {
	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}

	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}

	if fileInfo.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), v.maxFileSize)
	}

	return nil
}
