package handler

import (
	"net/http"

	"tiendapos/internal/apierror"
	"tiendapos/internal/dto"
	"tiendapos/internal/middleware"
	"tiendapos/internal/service"

	"github.com/gin-gonic/gin"
)

type SettingsHandler struct{ svc service.SettingsService }

func NewSettingsHandler(svc service.SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) GetTaxSettings(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	resp, err := h.svc.GetTaxSettings(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al obtener configuracion de impuestos"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SettingsHandler) UpdateTaxSettings(c *gin.Context) {
	var req dto.UpdateTaxSettingsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	identity := middleware.GetIdentity(c)
	resp, err := h.svc.UpdateTaxSettings(c.Request.Context(), identity.UserID, req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
