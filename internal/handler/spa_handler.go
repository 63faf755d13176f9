package handler

import (
	"net/http"
	"os"

	"caltrack/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Frontend serves the static SPA shell for every non-API route. The frontend
// router handles the path client-side.
func (h *Handler) Frontend(c echo.Context) error {
	shell, err := os.ReadFile(h.indexPath)
	if err != nil {
		logger.FromEcho(c).Error("Failed to read frontend shell", zap.Error(err), zap.String("path", h.indexPath))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "frontend unavailable"})
	}
	return c.HTMLBlob(http.StatusOK, shell)
}
