package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"analyze-service/database"
	"analyze-service/middleware"
	"analyze-service/models"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const maxEntryChars = 20000

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// JournalStore is the document store behind the journal endpoints
type JournalStore interface {
	List(ctx context.Context, userID string) ([]models.JournalEntry, error)
	Create(ctx context.Context, userID, date, text string) (*models.JournalEntry, error)
	Update(ctx context.Context, userID, id, text string) error
	Delete(ctx context.Context, userID, id string) error
}

type JournalHandler struct {
	store JournalStore
}

func NewJournalHandler(store JournalStore) *JournalHandler {
	return &JournalHandler{store: store}
}

// ListEntries returns the caller's entries, newest first
func (h *JournalHandler) ListEntries(c *gin.Context) {
	entries, err := h.store.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.storeError(c, err)
		return
	}
	if entries == nil {
		entries = []models.JournalEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (h *JournalHandler) CreateEntry(c *gin.Context) {
	var req models.JournalEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request format"})
		return
	}
	text, msg := validText(req.Text)
	if msg != "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
		return
	}
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if !datePattern.MatchString(date) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	entry, err := h.store.Create(c.Request.Context(), middleware.GetUserID(c), date, text)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *JournalHandler) UpdateEntry(c *gin.Context) {
	var req models.JournalEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request format"})
		return
	}
	text, msg := validText(req.Text)
	if msg != "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg})
		return
	}

	id := c.Param("id")
	if err := h.store.Update(c.Request.Context(), middleware.GetUserID(c), id, text); err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "text": text})
}

func (h *JournalHandler) DeleteEntry(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func validText(text string) (string, string) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return "", "text is required"
	case len([]rune(text)) > maxEntryChars:
		return "", "text is too long"
	}
	return text, ""
}

func (h *JournalHandler) storeError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Entry not found"})
		return
	}
	log.WithField("user_id", middleware.GetUserID(c)).Errorf("journal.store_failed: %v", err)
	c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Journal storage unavailable"})
}
