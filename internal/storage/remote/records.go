package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskmanager/internal/models"
)

const (
	taskTable     = "task_c"
	categoryTable = "category_c"

	untitledTask = "Untitled Task"
)

// Record service field names. Each task field has the suffixed name the
// service uses and the plain name older records were written with.
const (
	fieldID          = "Id"
	fieldName        = "Name"
	fieldTitle       = "title_c"
	fieldCompleted   = "completed_c"
	fieldPriority    = "priority_c"
	fieldCategory    = "category_c"
	fieldDueDate     = "due_date_c"
	fieldCreatedAt   = "created_at_c"
	fieldCompletedAt = "completed_at_c"
	fieldNotes       = "notes_c"
	fieldColor       = "color_c"
)

var plainNames = map[string]string{
	fieldID:          "id",
	fieldTitle:       "title",
	fieldCompleted:   "completed",
	fieldPriority:    "priority",
	fieldCategory:    "category",
	fieldDueDate:     "dueDate",
	fieldCreatedAt:   "createdAt",
	fieldCompletedAt: "completedAt",
	fieldNotes:       "notes",
	fieldColor:       "color",
	fieldName:        "name",
}

var taskFields = []string{
	fieldName, fieldTitle, fieldCompleted, fieldPriority, fieldCategory,
	fieldDueDate, fieldCreatedAt, fieldCompletedAt, fieldNotes,
}

var categoryFields = []string{fieldName, fieldColor}

// record is a raw row as the service returns it.
type record map[string]json.RawMessage

// lookup returns the value stored under the suffixed name or, failing that,
// under its plain name. JSON null counts as absent.
func (r record) lookup(name string) (json.RawMessage, bool) {
	if v, ok := r[name]; ok && !isNull(v) {
		return v, true
	}
	if plain, ok := plainNames[name]; ok {
		if v, ok := r[plain]; ok && !isNull(v) {
			return v, true
		}
	}
	return nil, false
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func (r record) str(name string) string {
	v, ok := r.lookup(name)
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	return ""
}

func (r record) boolean(name string) bool {
	v, ok := r.lookup(name)
	if !ok {
		return false
	}
	var b bool
	if json.Unmarshal(v, &b) == nil {
		return b
	}
	// some tables store checkboxes as "true"/"false" strings
	var s string
	if json.Unmarshal(v, &s) == nil {
		b, _ = strconv.ParseBool(s)
	}
	return b
}

// id decodes a numeric field. Lookup fields may carry the id bare, as a
// numeric string or wrapped in {"Id": n, "Name": "..."}.
func (r record) id(name string) (int64, bool) {
	v, ok := r.lookup(name)
	if !ok {
		return 0, false
	}
	return decodeID(v)
}

func decodeID(v json.RawMessage) (int64, bool) {
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		if id, err := n.Int64(); err == nil {
			return id, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	}

	var s string
	if json.Unmarshal(v, &s) == nil {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return id, true
		}
		return 0, false
	}

	var obj map[string]json.RawMessage
	if json.Unmarshal(v, &obj) == nil {
		for _, key := range []string{"Id", "id"} {
			if inner, ok := obj[key]; ok {
				return decodeID(inner)
			}
		}
	}
	return 0, false
}

// decodeTask converts a task record in either naming convention to the
// canonical model. Missing creation times fall back to now.
func decodeTask(r record, loc *time.Location, now time.Time) (models.Task, error) {
	id, ok := r.id(fieldID)
	if !ok {
		return models.Task{}, fmt.Errorf("task record without id: %w", models.ErrBackend)
	}

	t := models.Task{
		ID:        id,
		Title:     r.str(fieldTitle),
		Completed: r.boolean(fieldCompleted),
		Priority:  models.Priority(strings.ToLower(r.str(fieldPriority))),
		Notes:     r.str(fieldNotes),
		CreatedAt: now,
	}
	if t.Title == "" {
		t.Title = r.str(fieldName)
	}
	if cid, ok := r.id(fieldCategory); ok {
		t.CategoryID = &cid
	}
	t.DueDate = models.ParseDate(r.str(fieldDueDate), loc)
	if at := models.ParseTimestamp(r.str(fieldCreatedAt), loc); at != nil {
		t.CreatedAt = *at
	}
	t.CompletedAt = models.ParseTimestamp(r.str(fieldCompletedAt), loc)

	return models.Normalize(t), nil
}

func decodeCategory(r record) (models.Category, error) {
	id, ok := r.id(fieldID)
	if !ok {
		return models.Category{}, fmt.Errorf("category record without id: %w", models.ErrBackend)
	}
	c := models.Category{ID: id, Name: r.str(fieldName), Color: r.str(fieldColor)}
	if c.Color == "" {
		c.Color = models.DefaultCategoryColor
	}
	return c, nil
}

// encodeTask renders every writable field of t.
func encodeTask(t models.Task) map[string]any {
	name := t.Title
	if name == "" {
		name = untitledTask
	}
	return map[string]any{
		fieldName:        name,
		fieldTitle:       t.Title,
		fieldCompleted:   t.Completed,
		fieldPriority:    string(t.Priority),
		fieldCategory:    encodeCategoryRef(t.CategoryID),
		fieldDueDate:     encodeDate(t.DueDate),
		fieldCreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldCompletedAt: encodeTimestamp(t.CompletedAt),
		fieldNotes:       t.Notes,
	}
}

// encodeChanges renders only the fields that differ between before and after.
func encodeChanges(before, after models.Task) map[string]any {
	out := map[string]any{fieldID: after.ID}
	if before.Title != after.Title {
		out[fieldTitle] = after.Title
		out[fieldName] = after.Title
	}
	if before.Completed != after.Completed {
		out[fieldCompleted] = after.Completed
	}
	if before.Priority != after.Priority {
		out[fieldPriority] = string(after.Priority)
	}
	if !sameID(before.CategoryID, after.CategoryID) {
		out[fieldCategory] = encodeCategoryRef(after.CategoryID)
	}
	if encodeDate(before.DueDate) != encodeDate(after.DueDate) {
		out[fieldDueDate] = encodeDate(after.DueDate)
	}
	if encodeTimestamp(before.CompletedAt) != encodeTimestamp(after.CompletedAt) {
		out[fieldCompletedAt] = encodeTimestamp(after.CompletedAt)
	}
	if before.Notes != after.Notes {
		out[fieldNotes] = after.Notes
	}
	return out
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func encodeCategoryRef(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func encodeDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return models.FormatDate(*t)
}

func encodeTimestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

type fieldRef struct {
	Field struct {
		Name string `json:"Name"`
	} `json:"field"`
}

func fieldRefs(names ...string) []fieldRef {
	refs := make([]fieldRef, len(names))
	for i, n := range names {
		refs[i].Field.Name = n
	}
	return refs
}

type orderBy struct {
	FieldName string `json:"fieldName"`
	SortType  string `json:"sorttype"`
}

type whereClause struct {
	FieldName string `json:"FieldName"`
	Operator  string `json:"Operator"`
	Values    []any  `json:"Values"`
}

type pagingInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type fetchParams struct {
	Fields     []fieldRef    `json:"fields"`
	OrderBy    []orderBy     `json:"orderBy,omitempty"`
	Where      []whereClause `json:"where,omitempty"`
	PagingInfo *pagingInfo   `json:"pagingInfo,omitempty"`
}

type mutateParams struct {
	Records   []map[string]any `json:"records,omitempty"`
	RecordIds []int64          `json:"RecordIds,omitempty"`
}

type dataResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type fieldError struct {
	FieldLabel string `json:"fieldLabel"`
	Message    string `json:"message"`
}

type result struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    record       `json:"data"`
	Errors  []fieldError `json:"errors"`
}

func (r result) describe() string {
	parts := make([]string, 0, len(r.Errors)+1)
	for _, e := range r.Errors {
		parts = append(parts, e.FieldLabel+": "+e.Message)
	}
	if r.Message != "" {
		parts = append(parts, r.Message)
	}
	return strings.Join(parts, "; ")
}

type resultsResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Results []result `json:"results"`
}
