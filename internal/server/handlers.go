// ABOUTME: HTTP handlers translating JSON requests into core.Service calls
// ABOUTME: Errors render as {"error":{"kind","message"}} with the kind's status
package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harper/askdocs/internal/core"
	"github.com/harper/askdocs/internal/models"
)

type chatRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Answer  string          `json:"answer"`
	Sources []models.Source `json:"sources"`
}

type documentsRequest struct {
	Documents []models.Document `json:"documents"`
	Mode      string            `json:"mode"`
}

type ingestResponse struct {
	Status string `json:"status"`
	models.IngestStats
}

// uploadExtensions are the file types read verbatim as plain text
var uploadExtensions = map[string]bool{".txt": true, ".md": true}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"chunks": s.service.Stats().Chunks,
	})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Stats())
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, core.InvalidRequestError("chat", fmt.Errorf("invalid request body: %w", err)))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.fail(c, core.InvalidRequestError("chat", errors.New("invalid request, provide 'message'")))
		return
	}

	result, err := s.service.Ask(c.Request.Context(), req.ChatID, req.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, chatResponse{Answer: result.Answer, Sources: result.Sources})
}

func (s *Server) ingestDocuments(c *gin.Context) {
	var req documentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, core.InvalidRequestError("documents", fmt.Errorf("invalid request body: %w", err)))
		return
	}
	if len(req.Documents) == 0 && req.Mode != core.ModeRebuild {
		s.fail(c, core.InvalidRequestError("documents", errors.New("provide at least one document")))
		return
	}

	stats, err := s.service.Ingest(c.Request.Context(), req.Documents, req.Mode)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ingestResponse{Status: "indexed", IngestStats: stats})
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		s.fail(c, core.InvalidRequestError("upload", fmt.Errorf("invalid multipart form: %w", err)))
		return
	}

	files := append(form.File["files"], form.File["file"]...)
	if len(files) == 0 {
		s.fail(c, core.InvalidRequestError("upload", errors.New("no file part")))
		return
	}

	docs := make([]models.Document, 0, len(files))
	names := make([]string, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if !uploadExtensions[strings.ToLower(filepath.Ext(name))] {
			s.fail(c, core.InvalidRequestError("upload", fmt.Errorf("invalid file type: %s", name)))
			return
		}
		text, err := readUpload(fh)
		if err != nil {
			s.fail(c, core.InvalidRequestError("upload", fmt.Errorf("read %s: %w", name, err)))
			return
		}
		docs = append(docs, models.NewDocument("", text, map[string]string{models.MetaSource: name}))
		names = append(names, name)
	}

	stats, err := s.service.Ingest(c.Request.Context(), docs, c.PostForm("mode"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "indexed",
		"files":        names,
		"mode":         stats.Mode,
		"documents":    stats.Documents,
		"chunks":       stats.Chunks,
		"total_chunks": stats.TotalChunks,
	})
}

func readUpload(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func (s *Server) sessionHistory(c *gin.Context) {
	id := core.NormalizeSessionID(c.Param("id"))
	turns, err := s.service.History(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"turns":      turns,
	})
}

func (s *Server) clearSession(c *gin.Context) {
	id := c.Param("id")
	if err := s.service.ClearSession(id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail writes err with the status for its kind
func (s *Server) fail(c *gin.Context, err error) {
	kind := core.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "kind", kind.Code(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"kind":    kind.Code(),
			"message": err.Error(),
		},
	})
}
