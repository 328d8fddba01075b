package routes

import (
	"github.com/BizNestAI/bizzy-sub000/internal/api/handlers"
	"github.com/BizNestAI/bizzy-sub000/internal/api/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// CalendarRoutes handles the setup of calendar-related routes
type CalendarRoutes struct {
	handler *handlers.CalendarHandler
}

// NewCalendarRoutes creates a new CalendarRoutes instance
func NewCalendarRoutes(handler *handlers.CalendarHandler) *CalendarRoutes {
	return &CalendarRoutes{handler: handler}
}

// RegisterRoutes registers all calendar-related routes
func (cr *CalendarRoutes) RegisterRoutes(router *gin.Engine) {
	calendarGroup := router.Group("/api/calendar")
	calendarGroup.Use(middleware.BusinessContextMiddleware())

	// View payloads are large and repetitive; the drag socket must not be wrapped.
	compressed := gzip.Gzip(gzip.DefaultCompression)

	calendarGroup.GET("/view", compressed, cr.handler.GetView)
	calendarGroup.GET("/export.ics", compressed, cr.handler.ExportICS)
	calendarGroup.GET("/settings", cr.handler.GetSettings)

	events := calendarGroup.Group("/events")
	{
		events.GET("", compressed, cr.handler.ListEvents)
		events.POST("", cr.handler.CreateEvent)
		events.PATCH("/:id", cr.handler.UpdateEvent)
		events.DELETE("/:id", cr.handler.DeleteEvent)
	}

	drag := calendarGroup.Group("/drag")
	{
		// Socket first so "ws" is never taken for a gesture id
		drag.GET("/ws", cr.handler.DragSocket)
		drag.POST("", cr.handler.StartDrag)
		drag.POST("/:gesture/move", cr.handler.MoveDrag)
		drag.POST("/:gesture/end", cr.handler.EndDrag)
		drag.POST("/:gesture/cancel", cr.handler.CancelDrag)
	}
}
