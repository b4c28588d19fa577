package rest

import (
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/infrastructure/realtime"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/expression"
)

const defaultHeartbeat = 25 * time.Second

type RealtimeHandler struct {
	hub       *realtime.Hub
	filters   *expression.Engine
	heartbeat time.Duration
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, filters: expression.NewEngine(), heartbeat: defaultHeartbeat}
}

// Stream handles GET /api/realtime/stream?tables=deals,tasks as server-sent
// events. Each change of the caller's records is sent as an event named
// after its type, with the change as JSON data. An optional filter such as
// `type == 'UPDATE' && record.stage == 'closed_won'` is evaluated against
// that JSON; changes it rejects or fails on are skipped.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	user := GetUserFromContext(c)

	var tables []string
	for _, t := range strings.Split(c.Query("tables"), ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if !constants.IsCRMTable(t) {
			RespondAppError(c, apperrors.NewValidationError("tables", "unknown table "+t))
			return
		}
		tables = append(tables, t)
	}

	filter := strings.TrimSpace(c.Query("filter"))
	if filter != "" {
		if err := h.filters.Validate(filter); err != nil {
			RespondAppError(c, apperrors.NewValidationError("filter", err.Error()))
			return
		}
	}

	sub, cancel := h.hub.Subscribe(user.ID, tables)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"tables": tables})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-sub.C():
			if !ok {
				return false
			}
			matched, err := h.filters.MatchValue(filter, change)
			if err != nil {
				zap.L().Debug("realtime filter skipped change", zap.String("record_id", change.RecordID), zap.Error(err))
			}
			if matched {
				c.SSEvent(change.Event.String(), change)
			}
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
