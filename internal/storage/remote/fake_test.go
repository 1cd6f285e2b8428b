package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
)

const (
	testProject = "proj-1"
	testKey     = "pk-test"
)

// fakeService is an in-memory record service. Task reads render the
// category as a lookup object when the category exists, the way the hosted
// service expands lookup fields.
type fakeService struct {
	mu         sync.Mutex
	nextID     int64
	tables     map[string]map[int64]map[string]any
	busy       int
	busyStatus int
	requests   int
	lastPatch  []map[string]any
}

func newFakeService(categories []models.Category) *fakeService {
	f := &fakeService{
		nextID: 1,
		tables: map[string]map[int64]map[string]any{
			taskTable:     {},
			categoryTable: {},
		},
		busyStatus: http.StatusTooManyRequests,
	}
	for _, c := range categories {
		f.tables[categoryTable][c.ID] = map[string]any{
			fieldID:    float64(c.ID),
			fieldName:  c.Name,
			fieldColor: c.Color,
		}
	}
	return f
}

func (f *fakeService) setBusy(n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy, f.busyStatus = n, status
}

func (f *fakeService) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeService) row(table string, id int64) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table][id]
}

func (f *fakeService) patches() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPatch
}

// put stores a raw record, bypassing validation.
func (f *fakeService) put(table string, fields map[string]any) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	fields[fieldID] = float64(id)
	f.tables[table][id] = fields
	return id
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	if r.Header.Get("Authorization") != "Bearer "+testKey || r.Header.Get("X-Project-Id") != testProject {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid credentials"})
		return
	}
	if f.busy > 0 {
		f.busy--
		w.Header().Set("Retry-After", "0")
		writeJSON(w, f.busyStatus, map[string]any{"success": false, "message": "slow down"})
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/tables/"), "/")
	if len(parts) < 2 || parts[1] != "records" {
		http.NotFound(w, r)
		return
	}
	rows, ok := f.tables[parts[0]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "unknown table"})
		return
	}
	rest := parts[2:]

	switch {
	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "fetch":
		f.handleFetch(w, r, parts[0], rows)
	case r.Method == http.MethodGet && len(rest) == 1:
		id, err := strconv.ParseInt(rest[0], 10, 64)
		row, found := rows[id]
		if err != nil || !found {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Record not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": f.render(parts[0], row)})
	case len(rest) == 0:
		f.handleMutate(w, r, parts[0], rows)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeService) handleFetch(w http.ResponseWriter, r *http.Request, table string, rows map[int64]map[string]any) {
	var params fetchParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}

	data := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if !matches(row, params.Where) {
			continue
		}
		data = append(data, f.render(table, row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func matches(row map[string]any, where []whereClause) bool {
	for _, clause := range where {
		if clause.Operator != "EqualTo" || len(clause.Values) == 0 {
			continue
		}
		if toID(row[clause.FieldName]) != toID(clause.Values[0]) {
			return false
		}
	}
	return true
}

func (f *fakeService) handleMutate(w http.ResponseWriter, r *http.Request, table string, rows map[int64]map[string]any) {
	var params struct {
		Records   []map[string]any `json:"records"`
		RecordIds []int64          `json:"RecordIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": err.Error()})
		return
	}

	var results []map[string]any
	switch r.Method {
	case http.MethodPost:
		for _, fields := range params.Records {
			if title, _ := fields[fieldTitle].(string); table == taskTable && title == "" {
				results = append(results, map[string]any{
					"success": false,
					"errors":  []map[string]any{{"fieldLabel": "Title", "message": "is required"}},
				})
				continue
			}
			id := f.nextID
			f.nextID++
			fields[fieldID] = float64(id)
			rows[id] = fields
			results = append(results, map[string]any{"success": true, "data": f.render(table, fields)})
		}
	case http.MethodPatch:
		f.lastPatch = params.Records
		for _, fields := range params.Records {
			row, ok := rows[toID(fields[fieldID])]
			if !ok {
				results = append(results, map[string]any{"success": false, "message": "Record does not exist"})
				continue
			}
			for k, v := range fields {
				row[k] = v
			}
			results = append(results, map[string]any{"success": true, "data": f.render(table, row)})
		}
	case http.MethodDelete:
		for _, id := range params.RecordIds {
			if _, ok := rows[id]; !ok {
				results = append(results, map[string]any{"success": false, "message": "Record does not exist"})
				continue
			}
			delete(rows, id)
			results = append(results, map[string]any{"success": true})
		}
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"success": false, "message": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func (f *fakeService) render(table string, row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	if table != taskTable || row[fieldCategory] == nil {
		return out
	}
	cid := toID(row[fieldCategory])
	if cat, ok := f.tables[categoryTable][cid]; ok {
		out[fieldCategory] = map[string]any{"Id": cid, "Name": cat[fieldName]}
	}
	return out
}

func toID(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		id, _ := strconv.ParseInt(n, 10, 64)
		return id
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newFakeStore(t *testing.T, categories []models.Category) (*Store, *fakeService) {
	t.Helper()

	fake := newFakeService(categories)
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		BaseURL:    srv.URL,
		ProjectID:  testProject,
		PublicKey:  testKey,
		MaxRetries: 3,
		Backoff:    time.Millisecond,
	})
	require.NoError(t, err)

	s := New(client)
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}
