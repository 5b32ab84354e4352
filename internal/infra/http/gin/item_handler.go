package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"rentline/internal/infra/catalog"
)

// ItemHTTP proxies the item/category collaborator.
type ItemHTTP interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Categories(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// ItemHandler forwards item requests to the catalog service and
// rewrites image keys to displayable URLs on the way out.
type ItemHandler struct {
	Catalog *catalog.Client
	Images  catalog.ImageResolver
	Logger  *slog.Logger
}

// List returns one page of items.
func (h ItemHandler) List(c *gin.Context) {
	limit := parsePositiveInt(c.Query("limit"), 6)
	offset := parseNonNegativeInt(c.Query("offset"), 0)
	owner := strings.TrimSpace(c.Query("owner"))

	items, err := h.Catalog.List(c.Request.Context(), limit, offset, owner)
	if err != nil {
		h.respondCatalogError(c, err, "list items")
		return
	}
	for i := range items {
		items[i].Image = h.Images.URL(items[i].Image)
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

// Get returns one item.
func (h ItemHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id is required"})
		return
	}
	item, err := h.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		h.respondCatalogError(c, err, "get item", "itemid", id)
		return
	}
	item.Image = h.Images.URL(item.Image)
	c.JSON(http.StatusOK, item)
}

// Categories returns the category lookup table.
func (h ItemHandler) Categories(c *gin.Context) {
	categories, err := h.Catalog.Categories(c.Request.Context())
	if err != nil {
		h.respondCatalogError(c, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}

// Create registers a new item.
func (h ItemHandler) Create(c *gin.Context) {
	var item catalog.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	created, err := h.Catalog.Create(c.Request.Context(), item)
	if err != nil {
		h.respondCatalogError(c, err, "create item")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update patches an item.
func (h ItemHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id is required"})
		return
	}
	var item catalog.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	updated, err := h.Catalog.Update(c.Request.Context(), id, item)
	if err != nil {
		h.respondCatalogError(c, err, "update item", "itemid", id)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes an item.
func (h ItemHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id is required"})
		return
	}
	if err := h.Catalog.Delete(c.Request.Context(), id); err != nil {
		h.respondCatalogError(c, err, "delete item", "itemid", id)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ItemHandler) respondCatalogError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("catalog call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "catalog unavailable"})
}

func parsePositiveInt(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func parseNonNegativeInt(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return def
	}
	return value
}

var _ ItemHTTP = ItemHandler{}
