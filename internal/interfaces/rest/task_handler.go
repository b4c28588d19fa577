package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
)

type TaskHandler struct {
	tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// List handles GET /api/tasks?status=open|completed|overdue
func (h *TaskHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	handleList(c, "tasks", func(opts models.ListOptions) (interface{}, error) {
		return h.tasks.List(c.Request.Context(), user, opts)
	})
}

// Get handles GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "task", func() (interface{}, error) {
		return h.tasks.Get(c.Request.Context(), user, c.Param("id"))
	})
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.TaskInput
	HandleCreateEnvelope(c, "task", &in, func() (interface{}, error) {
		return h.tasks.Create(c.Request.Context(), user, in)
	})
}

// Update handles PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	user := GetUserFromContext(c)
	var in models.TaskInput
	HandleUpdateEnvelope(c, "task", &in, func() (interface{}, error) {
		return h.tasks.Update(c.Request.Context(), user, c.Param("id"), in)
	})
}

// Complete handles POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "task", func() (interface{}, error) {
		return h.tasks.Complete(c.Request.Context(), user, c.Param("id"))
	})
}

// Reopen handles POST /api/tasks/:id/reopen
func (h *TaskHandler) Reopen(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, "task", func() (interface{}, error) {
		return h.tasks.Reopen(c.Request.Context(), user, c.Param("id"))
	})
}

// Delete handles DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleDeleteEnvelope(c, "Task deleted", func() error {
		return h.tasks.Delete(c.Request.Context(), user, c.Param("id"))
	})
}
