package api

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gomdp/domain/core"
)

// maxPayloadBytes bounds uploaded model payloads.
const maxPayloadBytes = 32 << 20

func (s *Server) handleListModels(c *gin.Context) {
	limit, err := queryLimit(c, 50)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := s.deps.Models.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"models": records,
		"count":  len(records),
	})
}

// handleUploadModel stores a wire-encoded model posted as the raw request
// body. The payload is decoded before storage, so the catalog only ever
// holds valid models.
func (s *Server) handleUploadModel(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}
	if len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty payload"})
		return
	}
	if len(payload) > maxPayloadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload exceeds size limit"})
		return
	}

	record, err := s.deps.Catalog.ImportModel(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("[API] Stored model %q as %s", record.Name, record.ID)
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleGetModel(c *gin.Context) {
	id, err := core.ParseModelID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	record, err := s.deps.Models.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// handleModelPayload serves the stored wire payload as a download. The bytes
// are exactly what was uploaded, so the file hashes to the catalog's
// content hash.
func (s *Server) handleModelPayload(c *gin.Context) {
	id, err := core.ParseModelID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	record, err := s.deps.Models.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("model_%s.fmdp", record.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/octet-stream", record.Payload)
}

func (s *Server) handleDeleteModel(c *gin.Context) {
	id, err := core.ParseModelID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}

	if err := s.deps.Models.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("[API] Deleted model %s and its runs", id)
	c.Status(http.StatusNoContent)
}

// queryLimit parses the optional limit query parameter.
func queryLimit(c *gin.Context, fallback int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}
