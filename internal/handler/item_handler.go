package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"swapstyle-service/internal/catalog"
	"swapstyle-service/internal/middleware"
	"swapstyle-service/internal/model"
	"swapstyle-service/internal/service"
)

// ItemHandler exposes the catalog and engagement operations.
type ItemHandler struct {
	Sessions *service.Sessions
}

func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/items", h.Browse)
	rg.GET("/items/hottest", h.Hottest)
	rg.GET("/items/:id", h.GetItem)
	rg.GET("/users/:id/items", h.ItemsForUser)
	rg.GET("/me/items", h.MyItems)

	rg.POST("/profile", h.RegisterProfile)
	rg.POST("/items", h.CreateItem)
	rg.PUT("/items/:id", h.UpdateItem)
	rg.DELETE("/items/:id", h.DeleteItem)

	rg.POST("/items/:id/view/start", h.StartViewing)
	rg.POST("/items/:id/view/stop", h.StopViewing)
	rg.POST("/items/:id/cart", h.AddToCart)
}

// GET /api/items?category=...&subcategory=...&radius_km=...&lat=...&lng=...
func (h *ItemHandler) Browse(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))

	q := service.BrowseQuery{
		Category:    c.Query("category"),
		Subcategory: c.Query("subcategory"),
	}
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_km"})
			return
		}
		q.RadiusKm = r
	}
	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" || lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lat/lng"})
			return
		}
		q.Origin = &model.Coordinate{Latitude: lat, Longitude: lng}
	}

	items, err := co.Browse(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/items/hottest
func (h *ItemHandler) Hottest(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	items, err := co.Hottest(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/items/:id
func (h *ItemHandler) GetItem(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	item, err := co.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// GET /api/users/:id/items
func (h *ItemHandler) ItemsForUser(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	items, err := co.ItemsForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GET /api/me/items
func (h *ItemHandler) MyItems(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	items, err := co.MyItems(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// POST /api/profile
func (h *ItemHandler) RegisterProfile(c *gin.Context) {
	var req struct {
		DisplayName string `json:"displayName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	co := h.Sessions.For(middleware.UserID(c))
	if err := co.RegisterProfile(c.Request.Context(), req.DisplayName); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /api/items — multipart: item fields plus zero or more "images" files.
// Creation only finalizes once every image upload succeeded.
func (h *ItemHandler) CreateItem(c *gin.Context) {
	in := catalog.CreateItemInput{
		Name:        c.PostForm("name"),
		Details:     c.PostForm("details"),
		Condition:   model.Condition(c.PostForm("condition")),
		Category:    c.PostForm("category"),
		Subcategory: c.PostForm("subcategory"),
	}
	var err error
	if in.OriginalPrice, err = formFloat(c, "original_price"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Value, err = formFloat(c, "value"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Latitude, err = formFloat(c, "lat"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if in.Longitude, err = formFloat(c, "lng"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form, err := c.MultipartForm()
	if err == nil && form != nil {
		for _, fh := range form.File["images"] {
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open file"})
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
				return
			}
			in.Images = append(in.Images, catalog.ImageUpload{Name: fh.Filename, Data: data})
		}
	}

	co := h.Sessions.For(middleware.UserID(c))
	item, err := co.CreateItem(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// PUT /api/items/:id
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	var item model.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item.ID = c.Param("id")

	co := h.Sessions.For(middleware.UserID(c))
	if err := co.UpdateItem(c.Request.Context(), item); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DELETE /api/items/:id
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	co := h.Sessions.For(middleware.UserID(c))
	if err := co.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/items/:id/view/start
func (h *ItemHandler) StartViewing(c *gin.Context) {
	h.Sessions.For(middleware.UserID(c)).StartViewing(c.Param("id"))
	c.Status(http.StatusAccepted)
}

// POST /api/items/:id/view/stop
func (h *ItemHandler) StopViewing(c *gin.Context) {
	h.Sessions.For(middleware.UserID(c)).StopViewing(c.Param("id"))
	c.Status(http.StatusAccepted)
}

// POST /api/items/:id/cart
func (h *ItemHandler) AddToCart(c *gin.Context) {
	h.Sessions.For(middleware.UserID(c)).AddToCart(c.Param("id"))
	c.Status(http.StatusAccepted)
}

// formFloat parses an optional numeric form field. Absent means zero;
// malformed input is an error, never a silent zero.
func formFloat(c *gin.Context, field string) (float64, error) {
	v := c.PostForm(field)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", field)
	}
	return f, nil
}
