package http

import "github.com/gin-gonic/gin"

// Register attaches itinerary and comment routes to rg. renderMW runs in
// front of the document endpoints only.
func (h *Handler) Register(rg *gin.RouterGroup, renderMW ...gin.HandlerFunc) {
	it := rg.Group("/itineraries")
	it.POST("", h.create)
	it.GET("", h.list)
	it.GET("/:id", h.get)
	it.PUT("/:id", h.update)
	it.DELETE("/:id", h.archive)
	it.POST("/:id/duplicate", h.duplicate)
	it.GET("/:id/pricing", h.pricing)

	it.POST("/:id/versions", h.commitVersion)
	it.GET("/:id/versions", h.listVersions)
	it.GET("/:id/versions/:n", h.getVersion)

	it.GET("/:id/print", chain(renderMW, h.print)...)
	it.GET("/:id/preview", chain(renderMW, h.preview)...)

	it.POST("/:id/status", h.transition)
	it.PUT("/:id/collaborators/:user_id", h.upsertCollaborator)
	it.GET("/:id/collaborators", h.listCollaborators)
	it.POST("/:id/comments", h.addComment)
	it.GET("/:id/comments", h.listComments)

	rg.POST("/comments/:comment_id/resolve", h.resolveComment)
}

func chain(mw []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	return append(append(out, mw...), h)
}
