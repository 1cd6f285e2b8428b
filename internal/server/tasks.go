package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/models"
	"taskmanager/internal/query"
	"taskmanager/internal/storage"
)

var errConfirmationRequired = errors.New("confirmation required: repeat the request with confirm=true")

type createTaskRequest struct {
	Title      string `json:"title"`
	Priority   string `json:"priority"`
	CategoryID *int64 `json:"category_id"`
	DueDate    string `json:"due_date"`
	Notes      string `json:"notes"`
}

// updateTaskRequest keeps the nullable fields raw so an explicit null can be
// told apart from an absent key.
type updateTaskRequest struct {
	Title      *string         `json:"title"`
	Completed  *bool           `json:"completed"`
	Priority   *string         `json:"priority"`
	CategoryID json.RawMessage `json:"category_id"`
	DueDate    json.RawMessage `json:"due_date"`
	Notes      *string         `json:"notes"`
}

type bulkDeleteRequest struct {
	IDs     []int64 `json:"ids"`
	Confirm bool    `json:"confirm"`
}

// taskView renders the due date as a calendar day.
type taskView struct {
	models.Task
	DueDate *string `json:"due_date"`
}

func newTaskView(t models.Task) taskView {
	v := taskView{Task: t}
	if t.DueDate != nil {
		d := models.FormatDate(*t.DueDate)
		v.DueDate = &d
	}
	return v
}

func newTaskViews(tasks []models.Task) []taskView {
	out := make([]taskView, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskView(t)
	}
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), models.ErrValidation)
}

// listParams reads the filter and sort options shared by every list route.
func (s *Server) listParams(c *gin.Context) (query.Spec, query.SortField, query.Order, error) {
	spec := query.Spec{
		Search:        c.Query("search"),
		ShowCompleted: true,
	}

	if raw := c.Query("show_completed"); raw != "" {
		show, err := strconv.ParseBool(raw)
		if err != nil {
			return spec, "", "", invalid("invalid show_completed %q", raw)
		}
		spec.ShowCompleted = show
	}

	if raw := c.Query("priority"); raw != "" {
		p, ok := models.ParsePriority(raw)
		if !ok {
			return spec, "", "", invalid("unknown priority %q", raw)
		}
		spec.Priority = p
	}

	scope, ok := query.ParseScope(c.Query("scope"))
	if !ok {
		return spec, "", "", invalid("unknown scope %q", c.Query("scope"))
	}
	spec.Scope = scope

	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		id, err := s.resolveCategory(c, raw)
		if err != nil {
			return spec, "", "", err
		}
		spec.CategoryID = &id
	}

	field, ok := query.ParseSortField(c.Query("sort"))
	if !ok {
		return spec, "", "", invalid("unknown sort field %q", c.Query("sort"))
	}
	order, ok := query.ParseOrder(c.Query("order"))
	if !ok {
		return spec, "", "", invalid("unknown sort order %q", c.Query("order"))
	}
	return spec, field, order, nil
}

// resolveCategory accepts a category id or a category name.
func (s *Server) resolveCategory(c *gin.Context, raw string) (int64, error) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, nil
	}

	cats, err := s.store.ListCategories(c.Request.Context())
	if err != nil {
		return 0, err
	}
	cat, ok := models.CategoryByName(cats, raw)
	if !ok {
		return 0, invalid("unknown category %q", raw)
	}
	return cat.ID, nil
}

// taskList loads every task and builds the list payload. Stats always cover
// the whole task set.
func (s *Server) taskList(c *gin.Context, spec query.Spec, field query.SortField, order query.Order) (gin.H, error) {
	tasks, err := s.store.ListTasks(c.Request.Context())
	if err != nil {
		return nil, err
	}

	now := s.clock()
	visible := query.Sort(query.Filter(tasks, spec, now), field, order)
	pending, completed := query.Partition(visible)

	return gin.H{
		"tasks":     newTaskViews(visible),
		"pending":   len(pending),
		"completed": len(completed),
		"stats":     query.ComputeStats(tasks, now),
	}, nil
}

// handleListTasks returns the filtered and sorted task list.
func (s *Server) handleListTasks(c *gin.Context) {
	spec, field, order, err := s.listParams(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	payload, err := s.taskList(c, spec, field, order)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payload)
}

// handleScopedTasks serves the today and overdue routes.
func (s *Server) handleScopedTasks(scope query.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		spec, field, order, err := s.listParams(c)
		if err != nil {
			s.fail(c, err)
			return
		}
		spec.Scope = scope

		payload, err := s.taskList(c, spec, field, order)
		if err != nil {
			s.fail(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, payload)
	}
}

// handleCategoryTasks lists the tasks of one category.
func (s *Server) handleCategoryTasks(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	category, err := s.store.GetCategory(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}

	spec, field, order, err := s.listParams(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	spec.CategoryID = &id

	payload, err := s.taskList(c, spec, field, order)
	if err != nil {
		s.fail(c, err)
		return
	}
	payload["category"] = category
	respondSuccess(c, http.StatusOK, payload)
}

// handleGetTask returns a single task.
func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": newTaskView(task)})
}

// handleCreateTask inserts a new task.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("malformed body: %s", err))
		return
	}

	draft := models.TaskDraft{
		Title:      req.Title,
		CategoryID: req.CategoryID,
		Notes:      req.Notes,
	}
	if req.Priority != "" {
		p, ok := models.ParsePriority(req.Priority)
		if !ok {
			s.fail(c, invalid("unknown priority %q", req.Priority))
			return
		}
		draft.Priority = p
	}
	if req.DueDate != "" {
		due, err := s.parseDueDate(req.DueDate)
		if err != nil {
			s.fail(c, err)
			return
		}
		draft.DueDate = due
	}

	task, err := s.store.CreateTask(c.Request.Context(), draft)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": newTaskView(task)})
}

// handleUpdateTask applies a partial update.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("malformed body: %s", err))
		return
	}

	patch, err := s.patchFrom(req)
	if err != nil {
		s.fail(c, err)
		return
	}

	task, err := s.store.UpdateTask(c.Request.Context(), id, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": newTaskView(task)})
}

func (s *Server) patchFrom(req updateTaskRequest) (models.TaskPatch, error) {
	patch := models.TaskPatch{
		Title:     req.Title,
		Completed: req.Completed,
		Notes:     req.Notes,
	}

	if req.Priority != nil {
		p, ok := models.ParsePriority(*req.Priority)
		if !ok {
			return patch, invalid("unknown priority %q", *req.Priority)
		}
		patch.Priority = &p
	}

	if len(req.CategoryID) > 0 {
		var cid *int64
		if err := json.Unmarshal(req.CategoryID, &cid); err != nil {
			return patch, invalid("invalid category_id")
		}
		// null and 0 both remove the category
		if cid == nil {
			none := int64(0)
			cid = &none
		}
		patch.CategoryID = cid
	}

	if len(req.DueDate) > 0 {
		if isNull(req.DueDate) {
			patch.ClearDueDate = true
			return patch, nil
		}
		var raw string
		if err := json.Unmarshal(req.DueDate, &raw); err != nil {
			return patch, invalid("invalid due_date")
		}
		if strings.TrimSpace(raw) == "" {
			patch.ClearDueDate = true
			return patch, nil
		}
		due, err := s.parseDueDate(raw)
		if err != nil {
			return patch, err
		}
		patch.DueDate = due
	}
	return patch, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (s *Server) parseDueDate(raw string) (*time.Time, error) {
	due := models.ParseDate(raw, s.loc)
	if due == nil {
		return nil, invalid("invalid due_date %q, want YYYY-MM-DD", raw)
	}
	return due, nil
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

// handleDeleteTask removes a task after explicit confirmation.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !confirmed(c) {
		s.respondError(c, http.StatusPreconditionRequired, errConfirmationRequired)
		return
	}

	if err := s.store.DeleteTask(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleBulkDelete deletes several tasks; a failure on one id does not stop
// the others.
func (s *Server) handleBulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, invalid("malformed body: %s", err))
		return
	}
	if len(req.IDs) == 0 {
		s.fail(c, invalid("ids must not be empty"))
		return
	}
	if !req.Confirm && !confirmed(c) {
		s.respondError(c, http.StatusPreconditionRequired, errConfirmationRequired)
		return
	}

	res := storage.BulkDelete(c.Request.Context(), s.store, req.IDs)

	deleted := res.Deleted
	if deleted == nil {
		deleted = []int64{}
	}
	failed := make(map[string]string, len(res.Failed))
	for id, err := range res.Failed {
		failed[strconv.FormatInt(id, 10)] = err.Error()
	}
	if len(failed) > 0 {
		s.logger.Warn("bulk delete partially failed",
			"request_id", c.GetString("request_id"),
			"deleted", len(deleted),
			"failed", len(failed),
		)
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"deleted": deleted,
		"count":   res.Count(),
		"failed":  failed,
	})
}

// handleStats returns progress statistics over every task.
func (s *Server) handleStats(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"stats": query.ComputeStats(tasks, s.clock())})
}
