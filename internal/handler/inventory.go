package handler

import (
	"net/http"

	"tiendapos/internal/apierror"
	"tiendapos/internal/dto"
	"tiendapos/internal/middleware"
	"tiendapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventoryHandler struct{ svc service.InventoryService }

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// AdjustStock applies a manual stock correction to one product and records
// the matching ledger movement.
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	identity := middleware.GetIdentity(c)
	resp, err := h.svc.AdjustStock(c.Request.Context(), identity.UserID, identity.Name, id, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListMovements godoc
// @Summary      Listar movimientos de inventario
// @Description  Retorna el libro de movimientos de stock, paginado y filtrable por producto y tipo.
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Param        product_id query string false "UUID del producto"
// @Param        type       query string false "entrada | salida | all"
// @Param        page       query int    false "Página (default 1)"
// @Param        limit      query int    false "Registros por página (default 50)"
// @Success      200        {object} dto.MovementListResponse
// @Failure      400        {object} apierror.APIError
// @Router       /v1/inventario/movimientos [get]
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	var filter dto.MovementFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	identity := middleware.GetIdentity(c)
	resp, err := h.svc.ListMovements(c.Request.Context(), identity.UserID, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar movimientos"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
