package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/BizNestAI/bizzy-sub000/internal/api/dto"
	"github.com/BizNestAI/bizzy-sub000/internal/api/middleware"
	"github.com/BizNestAI/bizzy-sub000/internal/domain/calendar"
	"github.com/BizNestAI/bizzy-sub000/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// ClientHeader identifies the browser tab that owns a drag gesture.
	ClientHeader = "X-Client-ID"

	wsReadLimit  = 64 * 1024
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// CalendarHandler handles HTTP requests for calendar views, events and drags
type CalendarHandler struct {
	service  calendar.Service
	logger   *logger.Logger
	upgrader websocket.Upgrader
}

// NewCalendarHandler creates a new calendar handler instance
func NewCalendarHandler(service calendar.Service, logger *logger.Logger) *CalendarHandler {
	return &CalendarHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS is enforced by the router
			},
		},
	}
}

// GetView godoc
// @Summary Get a rendered calendar view
// @Description Day columns with laid-out timed events and all-day chips for week, month or agenda
// @Tags calendar
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Param mode query string false "week, month or agenda (default week)"
// @Param pivot query string false "Pivot date (2006-01-02) or RFC3339 time"
// @Param tz query string false "IANA time zone"
// @Param module query string false "Module filter"
// @Success 200 {object} calendar.ViewModel
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/calendar/view [get]
func (h *CalendarHandler) GetView(c *gin.Context) {
	req, ok := h.viewRequest(c)
	if !ok {
		return
	}

	vm, err := h.service.GetView(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vm)
}

// ListEvents godoc
// @Summary List merged calendar events
// @Description Persisted, mock and local-pending events for the view range around a pivot
// @Tags calendar
// @Produce json
// @Param X-Business-ID header string true "Business ID"
// @Success 200 {object} dto.EventListResponse
// @Router /api/calendar/events [get]
func (h *CalendarHandler) ListEvents(c *gin.Context) {
	req, ok := h.viewRequest(c)
	if !ok {
		return
	}

	result, rng, err := h.service.ListEvents(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EventListResponse{
		Events:   result.Events,
		From:     rng.From,
		To:       rng.To,
		Total:    len(result.Events),
		Degraded: result.Degraded,
		Mocked:   result.Mocked,
		Banner:   result.Banner,
	})
}

// ExportICS godoc
// @Summary Export the view range as iCalendar
// @Tags calendar
// @Produce text/calendar
// @Router /api/calendar/export.ics [get]
func (h *CalendarHandler) ExportICS(c *gin.Context) {
	req, ok := h.viewRequest(c)
	if !ok {
		return
	}

	body, err := h.service.ExportICS(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="calendar.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// CreateEvent godoc
// @Summary Create a calendar event
// @Description Persists the event, or keeps it as local-pending when the repository is unreachable
// @Tags calendar
// @Accept json
// @Produce json
// @Param event body dto.CreateEventRequest true "Event"
// @Success 201 {object} calendar.Event
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/calendar/events [post]
func (h *CalendarHandler) CreateEvent(c *gin.Context) {
	businessID, _ := middleware.GetBusinessID(c)

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	event, err := h.service.CreateEvent(c.Request.Context(), req.Draft(businessID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// UpdateEvent godoc
// @Summary Update a calendar event
// @Description Partial update. A rolled-back write answers 502 with the mutation.
// @Tags calendar
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param module query string false "Module the event belongs to"
// @Param event body dto.UpdateEventRequest true "Fields to change"
// @Success 200 {object} dto.MutationResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.MutationResponse
// @Router /api/calendar/events/{id} [patch]
func (h *CalendarHandler) UpdateEvent(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var req dto.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	m, err := h.service.UpdateEvent(c.Request.Context(), scope, c.Param("id"), req.Patch())
	h.respondMutation(c, m, err)
}

// DeleteEvent godoc
// @Summary Delete a calendar event
// @Tags calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} dto.MutationResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.MutationResponse
// @Router /api/calendar/events/{id} [delete]
func (h *CalendarHandler) DeleteEvent(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	m, err := h.service.DeleteEvent(c.Request.Context(), scope, c.Param("id"))
	h.respondMutation(c, m, err)
}

// GetSettings returns the layout and drag parameters clients render with.
func (h *CalendarHandler) GetSettings(c *gin.Context) {
	s := h.service.Settings()
	c.JSON(http.StatusOK, dto.SettingsResponse{
		WeekStart:   s.WeekStart.String(),
		Layout:      s.Layout,
		DragTimeout: s.DragTimeout.String(),
		SnapMinutes: calendar.SnapMinutes,
	})
}

// StartDrag godoc
// @Summary Begin a drag gesture
// @Description Starts a gesture on a rendered event. A newer gesture from the same client supersedes the old one.
// @Tags calendar
// @Accept json
// @Produce json
// @Param drag body dto.DragStartRequest true "Gesture geometry"
// @Success 201 {object} calendar.Preview
// @Router /api/calendar/drag [post]
func (h *CalendarHandler) StartDrag(c *gin.Context) {
	businessID, _ := middleware.GetBusinessID(c)

	var req dto.DragStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	loc, err := loadLocation(req.TZ)
	if err != nil {
		h.fail(c, err)
		return
	}

	owner := c.GetHeader(ClientHeader)
	if owner == "" {
		owner = businessID
	}
	preview, err := h.service.StartDrag(c.Request.Context(), req.DragStart(businessID, owner, loc))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, preview)
}

// MoveDrag updates the live preview of a gesture.
func (h *CalendarHandler) MoveDrag(c *gin.Context) {
	businessID, _ := middleware.GetBusinessID(c)

	var req dto.DragPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	preview, err := h.service.MoveDrag(businessID, c.Param("gesture"), req.X, req.Y)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// EndDrag godoc
// @Summary Drop a dragged event
// @Description Commits the drop. An unresolvable target answers 409 with the original position.
// @Tags calendar
// @Accept json
// @Produce json
// @Param gesture path string true "Gesture ID"
// @Success 200 {object} calendar.DropResult
// @Failure 409 {object} calendar.DropResult
// @Failure 410 {object} dto.ErrorResponse
// @Router /api/calendar/drag/{gesture}/end [post]
func (h *CalendarHandler) EndDrag(c *gin.Context) {
	businessID, _ := middleware.GetBusinessID(c)

	var req dto.DragPointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.service.EndDrag(c.Request.Context(), businessID, c.Param("gesture"), req.X, req.Y)
	switch {
	case err != nil && result != nil:
		c.JSON(statusFor(err), result)
	case err != nil:
		h.fail(c, err)
	case result.Mutation != nil && result.Mutation.State == calendar.MutationRolledBack:
		c.JSON(http.StatusBadGateway, result)
	default:
		c.JSON(http.StatusOK, result)
	}
}

// CancelDrag abandons a gesture without moving the event.
func (h *CalendarHandler) CancelDrag(c *gin.Context) {
	businessID, _ := middleware.GetBusinessID(c)
	if err := h.service.CancelDrag(businessID, c.Param("gesture")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DragSocket godoc
// @Summary Drag gestures over a websocket
// @Description Frames are {"type":"start|move|end|cancel"}. Closing the socket cancels the client's gesture.
// @Tags calendar
// @Router /api/calendar/drag/ws [get]
func (h *CalendarHandler) DragSocket(c *gin.Context) {
	businessID, _ := middleware.GetBusinessID(c)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade to WebSocket",
			zap.Error(err),
			zap.String("business_id", businessID),
			zap.String("remote_addr", c.Request.RemoteAddr))
		return
	}

	owner := uuid.NewString()
	defer func() {
		if h.service.CancelOwnerDrag(businessID, owner) {
			h.logger.Info("Cancelled drag on socket close", zap.String("owner", owner))
		}
		ws.Close()
	}()

	ws.SetReadLimit(wsReadLimit)
	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	ctx := c.Request.Context()
	for {
		var frame dto.DragFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Drag socket read error", zap.Error(err), zap.String("owner", owner))
			}
			return
		}

		reply := h.handleFrame(ctx, businessID, owner, frame)
		ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := ws.WriteJSON(reply); err != nil {
			h.logger.Error("Drag socket write error", zap.Error(err), zap.String("owner", owner))
			return
		}
	}
}

func (h *CalendarHandler) handleFrame(ctx context.Context, businessID, owner string, frame dto.DragFrame) dto.DragReply {
	reply := dto.DragReply{GestureID: frame.GestureID}

	switch frame.Type {
	case dto.FrameStart:
		if frame.Start == nil {
			return errorReply(reply, calendar.NewValidationError("start frame requires a start payload"))
		}
		loc, err := loadLocation(frame.Start.TZ)
		if err != nil {
			return errorReply(reply, err)
		}
		req := frame.Start.DragStart(businessID, owner, loc)
		if req.GestureID == "" {
			req.GestureID = frame.GestureID
		}
		preview, err := h.service.StartDrag(ctx, req)
		if err != nil {
			return errorReply(reply, err)
		}
		reply.Type = dto.FramePreview
		reply.GestureID = preview.GestureID
		reply.Preview = &preview

	case dto.FrameMove:
		preview, err := h.service.MoveDrag(businessID, frame.GestureID, frame.X, frame.Y)
		if err != nil {
			return errorReply(reply, err)
		}
		reply.Type = dto.FramePreview
		reply.Preview = &preview

	case dto.FrameEnd:
		result, err := h.service.EndDrag(ctx, businessID, frame.GestureID, frame.X, frame.Y)
		reply.Drop = result
		if err != nil {
			return errorReply(reply, err)
		}
		reply.Type = dto.FrameDrop

	case dto.FrameCancel:
		if err := h.service.CancelDrag(businessID, frame.GestureID); err != nil {
			return errorReply(reply, err)
		}
		reply.Type = dto.FrameCancelled

	default:
		return errorReply(reply, calendar.NewValidationError("unknown frame type "+frame.Type))
	}
	return reply
}

func errorReply(reply dto.DragReply, err error) dto.DragReply {
	reply.Type = dto.FrameError
	reply.Error = err.Error()
	reply.Kind = string(calendar.KindOf(err))
	return reply
}

func (h *CalendarHandler) viewRequest(c *gin.Context) (calendar.ViewRequest, bool) {
	businessID, _ := middleware.GetBusinessID(c)

	var q dto.ViewQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.badRequest(c, err)
		return calendar.ViewRequest{}, false
	}
	if q.Mode == "" {
		q.Mode = string(calendar.ViewModeWeek)
	}

	loc, err := loadLocation(q.TZ)
	if err != nil {
		h.fail(c, err)
		return calendar.ViewRequest{}, false
	}
	pivot, err := parsePivot(q.Pivot, loc)
	if err != nil {
		h.fail(c, err)
		return calendar.ViewRequest{}, false
	}

	return calendar.ViewRequest{
		BusinessID: businessID,
		Module:     calendar.Module(q.Module),
		Mode:       calendar.ViewMode(q.Mode),
		Pivot:      pivot,
	}, true
}

func (h *CalendarHandler) scope(c *gin.Context) (calendar.Scope, bool) {
	businessID, _ := middleware.GetBusinessID(c)
	scope := calendar.Scope{BusinessID: businessID, Module: calendar.Module(c.Query("module"))}
	if err := scope.Validate(); err != nil {
		h.fail(c, err)
		return calendar.Scope{}, false
	}
	return scope, true
}

func (h *CalendarHandler) respondMutation(c *gin.Context, m *calendar.Mutation, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	if m.State == calendar.MutationRolledBack {
		c.JSON(http.StatusBadGateway, dto.MutationResponse{Mutation: m, Error: m.ErrorMessage()})
		return
	}
	c.JSON(http.StatusOK, dto.MutationResponse{Mutation: m})
}

func (h *CalendarHandler) badRequest(c *gin.Context, err error) {
	resp := dto.ErrorResponse{Error: err.Error(), Kind: string(calendar.KindValidation)}
	if details := middleware.ValidationDetails(err); details != nil {
		resp.Error = "validation failed"
		resp.Details = details
	}
	c.JSON(http.StatusBadRequest, resp)
}

func (h *CalendarHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Calendar request failed",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, dto.ErrorResponse{Error: err.Error(), Kind: string(calendar.KindOf(err))})
}

func statusFor(err error) int {
	switch calendar.KindOf(err) {
	case calendar.KindValidation:
		return http.StatusBadRequest
	case calendar.KindNotFound:
		return http.StatusNotFound
	case calendar.KindUnresolvedDrop:
		return http.StatusConflict
	case calendar.KindStaleGesture:
		return http.StatusGone
	case calendar.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func loadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, calendar.NewValidationError("unknown time zone " + tz)
	}
	return loc, nil
}

func parsePivot(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Now().In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, calendar.NewValidationError("pivot must be a date or RFC3339 time")
	}
	return t.In(loc), nil
}
