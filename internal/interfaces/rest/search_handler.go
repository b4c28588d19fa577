package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
)

type SearchHandler struct {
	search *services.SearchService
}

func NewSearchHandler(search *services.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles GET /api/search?q=term&limit=n
func (h *SearchHandler) Search(c *gin.Context) {
	user := GetUserFromContext(c)
	limit, err := intParam(c, "limit")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, "results", func() (interface{}, error) {
		return h.search.Search(c.Request.Context(), user, c.Query("q"), limit)
	})
}
