// internal/handlers/seller.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type SellerHandler struct {
	sellers *services.SellerDirectory
}

func NewSellerHandler(sellers *services.SellerDirectory) *SellerHandler {
	return &SellerHandler{
		sellers: sellers,
	}
}

// POST /sellers
func (h *SellerHandler) RegisterSeller(c *gin.Context) {
	var req services.CreateSellerRequest
	if !bindJSON(c, &req) {
		return
	}

	seller, err := h.sellers.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, seller)
}

// GET /sellers
func (h *SellerHandler) ListSellers(c *gin.Context) {
	result, err := h.sellers.List(c.Request.Context(), utils.GetPaginationParams(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /sellers/:id
func (h *SellerHandler) GetSeller(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	seller, err := h.sellers.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, seller)
}
