package ingest

import (
	"io"
	"log"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/lox/drillboard/internal/models"
)

const (
	// DefaultMaxBytes is the upload size limit.
	DefaultMaxBytes = 10 << 20
	// PreviewSize is the number of records returned to the uploader.
	PreviewSize = 10
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var AcceptedMimeTypes = []string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-excel",
	"text/csv",
	"application/csv",
}

var AcceptedExtensions = []string{".xlsx", ".xls", ".csv"}

// Result is the outcome of ingesting one file.
type Result struct {
	RecordCount   int
	Preview       []models.Record
	Full          []models.Record
	Format        Format
	Sheet         string
	IgnoredSheets []string
	Flags         map[string]int
}

type Pipeline struct {
	MaxBytes int64
	Now      func() time.Time
}

func NewPipeline(maxBytes int64) *Pipeline {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Pipeline{MaxBytes: maxBytes, Now: time.Now}
}

// Validate applies the pre-parse checks: a file must be named, fit within
// MaxBytes, and declare an accepted MIME type or extension.
func (p *Pipeline) Validate(fileName, mimeType string, size int64) error {
	if fileName == "" {
		return ErrValidation("No file uploaded")
	}
	if size > p.MaxBytes {
		return &SizeLimitError{Limit: p.MaxBytes}
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !slices.Contains(AcceptedMimeTypes, mimeType) && !slices.Contains(AcceptedExtensions, ext) {
		return &UnsupportedTypeError{MimeType: mimeType, FileName: fileName}
	}
	return nil
}

// IsCSV reports whether an upload takes the delimited-text path.
func IsCSV(fileName, mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "csv") ||
		strings.HasSuffix(strings.ToLower(fileName), ".csv")
}

// Ingest validates, parses and normalizes one uploaded file. Only the first
// sheet of a workbook is read.
func (p *Pipeline) Ingest(data []byte, fileName, mimeType string) (*Result, error) {
	if err := p.Validate(fileName, mimeType, int64(len(data))); err != nil {
		return nil, err
	}

	format := FormatCSV
	var sh *sheet
	var err error
	if IsCSV(fileName, mimeType) {
		sh, err = readCSV(data)
	} else {
		format, err = sniffWorkbook(data)
		if err == nil {
			if format == FormatXLSX {
				sh, err = readXLSX(data)
			} else {
				sh, err = readXLS(data)
			}
		}
	}
	if err != nil {
		log.Printf("ingest: parse %s: %v", fileName, unwrapParse(err))
		return nil, err
	}
	if len(sh.Others) > 0 {
		log.Printf("ingest: %s: read sheet %q, ignored %d other sheet(s): %s",
			fileName, sh.Name, len(sh.Others), strings.Join(sh.Others, ", "))
	}

	full := Normalize(rowsToRaw(sh.Cells), p.now())
	return &Result{
		RecordCount:   len(full),
		Preview:       Preview(full, PreviewSize),
		Full:          full,
		Format:        format,
		Sheet:         sh.Name,
		IgnoredSheets: sh.Others,
		Flags:         SummarizeFlags(full),
	}, nil
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Preview returns the first n records without copying.
func Preview(records []models.Record, n int) []models.Record {
	if len(records) < n {
		n = len(records)
	}
	return records[:n:n]
}

// ReadLimited reads r up to limit bytes. Reading stops one byte past the
// limit, so an oversized body is never fully buffered.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &SizeLimitError{Limit: limit}
	}
	return data, nil
}

func unwrapParse(err error) error {
	if pe, ok := err.(*ParseError); ok && pe.Err != nil {
		return pe.Err
	}
	return err
}
