package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/logger"
)

// respondError writes the JSON error body for err with its mapped status.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(status, apperrors.Body(err))
}

func invalidBody(c *gin.Context, field string, err error) {
	respondError(c, apperrors.Validation(field, "invalid request: "+err.Error()))
}
