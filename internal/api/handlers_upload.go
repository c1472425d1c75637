package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/lox/drillboard/internal/ingest"
)

const (
	// multipartOverhead allows for boundaries and part headers on top of
	// the file itself.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 1 << 10
)

type uploadResponse struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	RecordCount   int            `json:"recordCount"`
	Data          any            `json:"data"`
	UploadID      string         `json:"uploadId,omitempty"`
	WellID        string         `json:"wellId,omitempty"`
	Format        string         `json:"format"`
	Sheet         string         `json:"sheet"`
	IgnoredSheets []string       `json:"ignoredSheets"`
	Flags         map[string]int `json:"flags"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.importer.Pipeline().MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	req, err := readUpload(r, limit)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	res, err := s.importer.Import(r.Context(), *req)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	ignored := res.IgnoredSheets
	if ignored == nil {
		ignored = []string{}
	}
	flags := res.Flags
	if flags == nil {
		flags = map[string]int{}
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:       true,
		Message:       "File uploaded successfully",
		RecordCount:   res.RecordCount,
		Data:          res.Preview,
		UploadID:      res.UploadID,
		WellID:        res.WellID,
		Format:        string(res.Format),
		Sheet:         res.Sheet,
		IgnoredSheets: ignored,
		Flags:         flags,
	})
}

// readUpload streams the multipart body, keeping the "file" part (bounded
// by limit) and the optional "wellId" field.
func readUpload(r *http.Request, limit int64) (*ingest.ImportRequest, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, ingest.ErrValidation("No file uploaded")
	}

	req := &ingest.ImportRequest{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, err
			}
			return nil, ingest.ErrValidation("Invalid upload body")
		}

		switch part.FormName() {
		case "file":
			req.FileName = part.FileName()
			req.MimeType = part.Header.Get("Content-Type")
			if req.Data, err = ingest.ReadLimited(part, limit); err != nil {
				part.Close()
				return nil, err
			}
		case "wellId":
			v, err := ingest.ReadLimited(part, maxFieldBytes)
			if err != nil {
				part.Close()
				return nil, ingest.ErrValidation("wellId is too long")
			}
			req.WellID = strings.TrimSpace(string(v))
		}
		part.Close()
	}
	return req, nil
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	status, msg := s.uploadStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("upload: %v", err)
	}
	writeError(w, status, msg)
}

func (s *Server) uploadStatus(err error) (int, string) {
	var (
		ve  *ingest.ValidationError
		se  *ingest.SizeLimitError
		ue  *ingest.UnsupportedTypeError
		pe  *ingest.ParseError
		nf  *ingest.NotFoundError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.As(err, &se):
		return http.StatusRequestEntityTooLarge, se.Error()
	case errors.As(err, &mbe):
		limit := s.importer.Pipeline().MaxBytes
		return http.StatusRequestEntityTooLarge, (&ingest.SizeLimitError{Limit: limit}).Error()
	case errors.As(err, &ue):
		return http.StatusUnsupportedMediaType, ue.Error()
	case errors.As(err, &pe):
		return http.StatusUnprocessableEntity, pe.Error()
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Error()
	}
	return http.StatusInternalServerError, "Failed to upload file"
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	uploads, err := s.store.ListUploads(limit)
	if err != nil {
		log.Printf("api: list uploads: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch data")
		return
	}
	views := make([]UploadView, 0, len(uploads))
	for _, u := range uploads {
		views = append(views, uploadView(u))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleUploadHealth(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = min(n, 365)
	}

	summaries, err := s.store.GetUploadHealth(days)
	if err != nil {
		log.Printf("api: upload health: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch upload health")
		return
	}
	views := make([]UploadHealthView, 0, len(summaries))
	for _, h := range summaries {
		views = append(views, uploadHealthView(h))
	}
	writeJSON(w, http.StatusOK, views)
}
