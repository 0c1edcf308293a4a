package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"supplychain-rag/internal/config"
	"supplychain-rag/internal/llmservice"
	"supplychain-rag/internal/models"
	"supplychain-rag/internal/parser"
	"supplychain-rag/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Pipeline is the subset of rag.RAG the HTTP layer needs.
type Pipeline interface {
	Ingest(filename string, data []byte) (*rag.Session, error)
	Query(ctx context.Context, session *rag.Session, query string) (*models.PromptResponse, error)
}

type Server struct {
	pipeline  Pipeline
	sessions  *sessionStore
	maxUpload int64
	markdown  goldmark.Markdown
}

type uploadResponse struct {
	SessionID  string `json:"session_id"`
	Filename   string `json:"filename"`
	Chunks     int    `json:"chunks"`
	Characters int    `json:"characters"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type queryResponse struct {
	Query      string               `json:"query"`
	Answer     string               `json:"answer"`
	AnswerHTML string               `json:"answer_html"`
	Sources    []models.ScoredChunk `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(pipeline Pipeline, cfg config.ServerConfig) *Server {
	return &Server{
		pipeline:  pipeline,
		sessions:  newSessionStore(),
		maxUpload: int64(cfg.MaxUploadMB) << 20,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// Router registers the document and query endpoints.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = s.maxUpload
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.POST("/documents", s.upload)
	api.POST("/documents/:id/query", s.query)
	api.DELETE("/documents/:id", s.deleteSession)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "file is required"})
		return
	}
	if file.Size > s.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("file exceeds %d MB", s.maxUpload>>20),
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("reading upload failed: %v", err)})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("reading upload failed: %v", err)})
		return
	}

	session, err := s.pipeline.Ingest(file.Filename, data)
	if err != nil {
		log.Warn().Err(err).Str("file", file.Filename).Msg("Ingest failed")
		c.JSON(statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	s.sessions.put(session)

	c.JSON(http.StatusCreated, uploadResponse{
		SessionID:  session.ID,
		Filename:   session.Filename,
		Chunks:     len(session.Chunks),
		Characters: len([]rune(session.Text)),
	})
}

func (s *Server) query(c *gin.Context) {
	session, ok := s.sessions.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: rag.ErrNoDocument.Error()})
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	resp, err := s.pipeline.Query(c.Request.Context(), session, req.Query)
	if err != nil {
		log.Warn().Err(err).Str("session", session.ID).Msg("Query failed")
		c.JSON(statusFor(err), errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, queryResponse{
		Query:      resp.Query,
		Answer:     resp.Content,
		AnswerHTML: s.renderMarkdown(resp.Content),
		Sources:    resp.Source,
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.sessions.delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, errorResponse{Error: rag.ErrNoDocument.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) renderMarkdown(text string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		log.Warn().Err(err).Msg("Rendering answer markdown failed")
		return ""
	}
	return buf.String()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, parser.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rag.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, llmservice.ErrModelUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	}
}
