package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mindcare-chatbot-backend/services"
)

type CatalogController struct {
	chatbotService *services.ChatbotService
}

func NewCatalogController(chatbotService *services.ChatbotService) *CatalogController {
	return &CatalogController{chatbotService: chatbotService}
}

// ListDiseases returns every catalog record in catalog order.
func (cc *CatalogController) ListDiseases(c *gin.Context) {
	idx := cc.chatbotService.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"count":    idx.Len(),
		"diseases": idx.Records(),
	})
}

// Lookup is the quick lookup box: exact name first, then closest match.
func (cc *CatalogController) Lookup(c *gin.Context) {
	rec, err := cc.chatbotService.Lookup(c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":     c.Query("q"),
		"disease":   rec,
		"medicines": services.MedicineSection(rec),
		"doctors":   services.DoctorSection(rec),
	})
}
