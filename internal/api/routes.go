package api

import (
	"crypto/x509"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cacvote/server/internal/cacvote"
	"github.com/cacvote/server/internal/store"
)

// maxRequestBytes caps every request body at 10 MiB.
const maxRequestBytes = 10 << 20

// Handler holds the dependencies every route needs: the object/journal
// store, the websocket hub for pushing journal entries to subscribers as
// they're created, the trust roots a SignedObject's certificate chain is
// verified against, and the scanned-mailing-label skip-verify flag.
type Handler struct {
	store                  *store.Store
	wsHub                  *Hub
	trustRoots             *x509.CertPool
	scannedLabelSkipVerify bool
}

// SetupRouter wires the replication HTTP API: a CORS middleware configured
// from ALLOWED_ORIGINS, a public route group, and an admin-token-gated,
// rate-limited group for write endpoints.
func SetupRouter(s *store.Store, wsHub *Hub, trustRoots *x509.CertPool, adminToken string, scannedLabelSkipVerify bool) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.Use(maxBodySizeMiddleware)

	h := &Handler{
		store:                  s,
		wsHub:                  wsHub,
		trustRoots:             trustRoots,
		scannedLabelSkipVerify: scannedLabelSkipVerify,
	}

	pub := r.Group("/")
	{
		pub.GET("/journal", h.handleGetJournal)
		pub.GET("/objects/:id", h.handleGetObject)
		pub.GET("/journal/stream", wsHub.Subscribe)
	}

	write := r.Group("/")
	write.Use(AuthMiddleware(adminToken))
	write.Use(NewRateLimiter(60, 10).Middleware())
	{
		write.POST("/objects", h.handleCreateObject)
		write.POST("/scanned-mailing-label-codes", h.handleCreateScannedMailingLabelCode)
	}

	return r
}

// maxBodySizeMiddleware rejects any request body over maxRequestBytes
// before a handler ever reads it.
func maxBodySizeMiddleware(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)
	c.Next()
}

// handleCreateObject implements POST /objects.
func (h *Handler) handleCreateObject(c *gin.Context) {
	var obj cacvote.SignedObject
	if err := c.ShouldBindJSON(&obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid SignedObject body: " + err.Error()})
		return
	}

	entry, err := h.store.CreateObject(c.Request.Context(), obj, h.trustRoots)
	if err != nil {
		status, msg := statusForErr(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	h.wsHub.BroadcastJournalEntry(entry)

	c.JSON(http.StatusOK, gin.H{"id": entry.ObjectID})
}

// handleGetJournal implements GET /journal?since=<uuid>&jurisdiction=<code>.
func (h *Handler) handleGetJournal(c *gin.Context) {
	var sinceID *uuid.UUID
	if since := c.Query("since"); since != "" {
		id, err := uuid.Parse(since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since parameter: " + err.Error()})
			return
		}
		sinceID = &id
	}

	var jurisdiction *string
	if j := c.Query("jurisdiction"); j != "" {
		jurisdiction = &j
	}

	entries, err := h.store.GetJournalEntries(c.Request.Context(), sinceID, jurisdiction)
	if err != nil {
		status, msg := statusForErr(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// handleGetObject implements GET /objects/{id}.
func (h *Handler) handleGetObject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object id: " + err.Error()})
		return
	}

	obj, err := h.store.GetObjectByID(c.Request.Context(), id)
	if err != nil {
		status, msg := statusForErr(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if obj == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}

	c.JSON(http.StatusOK, obj)
}

// handleCreateScannedMailingLabelCode implements
// POST /scanned-mailing-label-codes.
func (h *Handler) handleCreateScannedMailingLabelCode(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if err.Error() == "http: request body too large" {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body exceeds the maximum allowed size"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body: " + err.Error()})
		return
	}

	id, err := h.store.CreateScannedMailingLabelCode(c.Request.Context(), raw, h.scannedLabelSkipVerify)
	if err != nil {
		status, msg := statusForErr(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}
