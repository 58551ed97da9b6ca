package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/task-tracker/internal/auth"
	"github.com/sakif/task-tracker/internal/service"
)

// maxBodyBytes caps request bodies; a task title is at most 200 characters.
const maxBodyBytes = 64 << 10

// TaskHandler serves the /api/tasks endpoints.
//
// Every method starts the same way: resolve the session from the request
// context (LoadSession put it there) and answer 401 if there is none. The
// session's UserID is then passed to the service explicitly; the service
// never looks at the request.
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

// HandleList returns one page of the caller's tasks.
//
// HTTP: GET /api/tasks?q=milk&page=2&pageSize=20
//
// RESPONSE FORMAT:
//
//	{"items":[...], "page":2, "pageSize":20, "total":37, "totalPages":2}
//
// Missing or unparseable page/pageSize fall back to 1 and 10; the service
// clamps out-of-range values.
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	query := r.URL.Query()
	params := service.DefaultListParams()
	params.Query = query.Get("q")
	if n, err := strconv.Atoi(query.Get("page")); err == nil {
		params.Page = n
	}
	if n, err := strconv.Atoi(query.Get("pageSize")); err == nil {
		params.PageSize = n
	}

	page, err := h.tasks.List(r.Context(), sess.UserID, params)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// createTaskRequest decodes title as any so a non-string title can be told
// apart from malformed JSON.
type createTaskRequest struct {
	Title any `json:"title"`
}

// HandleCreate adds a task for the caller.
//
// HTTP: POST /api/tasks
// REQUEST BODY: {"title": "Buy milk"}
// RESPONSE: 201 with the created task
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("invalid task JSON", slog.String("error", err.Error()))
		writeBadRequest(w, "invalid JSON body")
		return
	}

	title, isString := req.Title.(string)
	if !isString || title == "" {
		writeBadRequest(w, "title is required")
		return
	}

	task, err := h.tasks.Create(r.Context(), sess.UserID, title)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// HandleToggle flips the done flag of one of the caller's tasks.
//
// HTTP: PATCH /api/tasks/{id}/toggle
// RESPONSE: 200 with the updated task; 404 unknown id; 403 someone else's
func (h *TaskHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	task, err := h.tasks.Toggle(r.Context(), sess.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
