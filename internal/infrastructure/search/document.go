package search

import "github.com/guisedstore/storefront/internal/models"

func DocumentFromProduct(p *models.Product) models.SearchDocument {
	doc := models.SearchDocument{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Status:      string(p.Status),
		CategoryID:  p.CategoryID,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Category != nil {
		doc.Category = p.Category.Name
	}
	return doc
}
