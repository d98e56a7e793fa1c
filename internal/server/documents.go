package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/knograph/knograph/internal/extract"
	"github.com/knograph/knograph/internal/registry"
)

type uploadResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	TextLength  int    `json:"text_length"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// uploadDocument extracts text from the uploaded file, records the
// document and feeds the text to the knowledge engine. Validation
// failures reject the upload before any record is created; an engine
// rejection is reported in the body, not as an HTTP failure.
func (s *Server) uploadDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		s.error(c, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		s.error(c, http.StatusBadRequest, "No filename provided")
		return
	}
	if !extract.Supported(filename) || !s.allowedFileType(filename) {
		s.error(c, http.StatusBadRequest, fmt.Sprintf(
			"Unsupported file format. Allowed types: %s",
			strings.Join(extract.SupportedExtensions(), ", ")))
		return
	}
	if s.cfg.MaxUploadSize > 0 && header.Size > s.cfg.MaxUploadSize {
		s.error(c, http.StatusBadRequest, fmt.Sprintf(
			"File too large. Maximum size is %d bytes", s.cfg.MaxUploadSize))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.error(c, http.StatusInternalServerError, "Error processing document")
		return
	}
	if len(data) == 0 {
		s.error(c, http.StatusBadRequest, "Empty file uploaded")
		return
	}

	s.log.Info("processing upload %s (%d bytes)", filename, len(data))

	text, err := extract.Extract(data, filename)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrTooShort):
			s.error(c, http.StatusBadRequest, "Extracted text is too short to be useful")
		case errors.Is(err, extract.ErrUnsupportedFormat),
			errors.Is(err, extract.ErrExtractionFailed),
			errors.Is(err, extract.ErrDecodeFailed):
			s.error(c, http.StatusBadRequest, "No text content could be extracted from the file")
		default:
			s.error(c, http.StatusInternalServerError, "Error processing document")
		}
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc, err := s.documents.Create(filename, contentType, header.Size, text)
	if err != nil {
		s.error(c, http.StatusInternalServerError, "Error processing document")
		return
	}

	// Past this point a record exists; a panic must not strand it in
	// the processing state.
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("upload %s panicked: %v", doc.ID, r)
			if _, err := s.documents.UpdateStatus(doc.ID, registry.StatusError); err != nil {
				s.log.Error("marking document %s as errored: %v", doc.ID, err)
			}
			s.error(c, http.StatusInternalServerError, "Error processing document")
		}
	}()

	result := s.knowledge.Insert(c.Request.Context(), text, doc.ID)

	status := registry.StatusCompleted
	message := "Document successfully processed and added to knowledge base"
	if !result.OK {
		status = registry.StatusFailed
		message = "Document processing failed - please try again"
	}

	doc, err = s.documents.UpdateStatus(doc.ID, status)
	if err != nil {
		// The record vanished under us; mark nothing and report failure.
		s.error(c, http.StatusInternalServerError, "Error processing document")
		return
	}

	c.JSON(http.StatusOK, uploadResponse{
		ID:          doc.ID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		Size:        doc.Size,
		TextLength:  doc.TextLength,
		Status:      string(doc.Status),
		Message:     message,
	})
}

// allowedFileType applies the configured extension allowlist; an empty
// list allows every extension the extractor supports.
func (s *Server) allowedFileType(filename string) bool {
	if len(s.cfg.AllowedFileTypes) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.cfg.AllowedFileTypes {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (s *Server) listDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, s.documents.List())
}

func (s *Server) getDocument(c *gin.Context) {
	doc, err := s.documents.Get(c.Param("id"))
	if err != nil {
		s.error(c, http.StatusNotFound, "Document not found")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) documentStatus(c *gin.Context) {
	doc, err := s.documents.Get(c.Param("id"))
	if err != nil {
		s.error(c, http.StatusNotFound, "Document not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"status":      doc.Status,
		"upload_time": doc.UploadTime,
		"text_length": doc.TextLength,
	})
}

func (s *Server) deleteDocument(c *gin.Context) {
	id := c.Param("id")
	if err := s.documents.Delete(id); err != nil {
		s.error(c, http.StatusNotFound, "Document not found")
		return
	}
	s.log.Info("document %s deleted", id)
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Document %s deleted successfully", id)})
}
