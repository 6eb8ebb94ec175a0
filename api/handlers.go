package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/stream"
)

// Deps are the collaborators of the API routes. Deduper, Sinks and Broker
// are optional.
type Deps struct {
	Store    Storage
	Auth     Authenticator
	Deduper  Deduper
	Sinks    []ChangeSink
	Broker   *stream.Broker
	PageSize int
	Sender   SenderConfig
	Now      func() time.Time
}

// Register wires up all API routes on the provided Echo instance. The
// returned func flushes pending change notifications.
func Register(e *echo.Echo, deps Deps, logger *log.Logger) (shutdown func()) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	sender := newChangeSender(deps.Sinks, deps.Sender, logger)
	h := &handlers{Deps: deps, sender: sender, logger: logger}

	e.GET("/api/tasks", h.listTasks)
	e.POST("/api/tasks", h.createTask)
	e.GET("/api/tasks/:id", h.getTask)
	e.PATCH("/api/tasks/:id", h.updateTask)
	e.DELETE("/api/tasks/:id", h.deleteTask)
	e.GET("/api/users", h.listUsers)
	if deps.Broker != nil {
		e.GET("/api/stream", streamChanges(deps.Auth, deps.Broker, logger))
	}
	e.GET("/healthz", healthz)
	return sender.Close
}

type handlers struct {
	Deps
	sender *changeSender
	logger *log.Logger
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// resolveTeam picks the team of a request: the teamId parameter, or the
// caller's only team when the parameter is absent.
func resolveTeam(c echo.Context, p Principal) (string, error) {
	teamID := strings.TrimSpace(c.QueryParam("teamId"))
	if teamID == "" {
		if len(p.Teams) != 1 {
			return "", c.String(http.StatusBadRequest, "teamId is required")
		}
		teamID = p.Teams[0]
	}
	if !p.InTeam(teamID) {
		return "", c.String(http.StatusForbidden, "not a member of team")
	}
	return teamID, nil
}

// resolveViewRole returns the role the caller views as. It may only lower
// the caller's own role.
func resolveViewRole(c echo.Context, p Principal) (domain.Role, bool) {
	raw := strings.TrimSpace(c.QueryParam("effectiveRole"))
	if raw == "" {
		return p.Role, true
	}
	role := domain.Role(raw)
	return role, p.Role.CanViewAs(role)
}

func parseFilter(c echo.Context) (domain.Filter, error) {
	f := domain.Filter{
		Status:     domain.Status(c.QueryParam("status")),
		Priority:   domain.Priority(c.QueryParam("priority")),
		AssignedTo: c.QueryParam("assignedTo"),
		Query:      c.QueryParam("q"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, domain.ErrInvalidStatus
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return f, domain.ErrInvalidPriority
	}
	return f, nil
}

func (h *handlers) listTasks(c echo.Context) (err error) {
	metrics, ctx := newTaskRequestMetrics(c.Request().Context(), h.logger, "/api/tasks")
	c.SetRequest(c.Request().WithContext(ctx))
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	p, authErr := h.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return c.String(http.StatusUnauthorized, authErr.Error())
	}
	teamID, rerr := resolveTeam(c, p)
	if teamID == "" {
		metrics.SetErrorStage("team")
		return rerr
	}
	role, ok := resolveViewRole(c, p)
	if !ok {
		metrics.SetErrorStage("effective_role")
		return c.String(http.StatusForbidden, "cannot view as "+string(role))
	}
	filter, ferr := parseFilter(c)
	if ferr != nil {
		metrics.SetErrorStage("invalid_filter")
		return c.String(http.StatusBadRequest, ferr.Error())
	}
	pageToken := c.QueryParam("pageToken")
	metrics.SetPageTokenProvided(pageToken != "")
	pageSize := h.PageSize
	if raw := strings.TrimSpace(c.QueryParam("pageSize")); raw != "" {
		n, perr := strconv.Atoi(raw)
		if perr != nil || n <= 0 {
			metrics.SetErrorStage("invalid_page_size")
			return c.String(http.StatusBadRequest, "invalid page size")
		}
		pageSize = n
	}

	fetchStart := time.Now()
	tasks, fetchErr := h.Store.ListTasks(ctx, teamID)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("storage")
		h.logger.WithError(fetchErr).WithField("team", teamID).Error("list tasks failed")
		return c.String(http.StatusInternalServerError, "failed to list tasks")
	}
	tasks = filter.Apply(domain.VisibleTo(tasks, p.UserID, role))
	page, next, perr := domain.Paginate(tasks, pageToken, pageSize)
	if perr != nil {
		metrics.SetErrorStage("invalid_page_token")
		return c.String(http.StatusBadRequest, "invalid page token")
	}
	metrics.SetTasksReturned(len(page))
	if next != "" {
		metrics.SetHasNextPage(true)
		c.Response().Header().Set(headerNextPageToken, next)
	}
	encodeStart := time.Now()
	err = c.JSON(http.StatusOK, page)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
	}
	return err
}

// visibleTask loads a task and hides it as not found when the caller may
// not see it.
func (h *handlers) visibleTask(c echo.Context, p Principal, id string) (domain.Task, error) {
	t, err := h.Store.FindTask(c.Request().Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Task{}, c.String(http.StatusNotFound, "task not found")
	}
	if err != nil {
		h.logger.WithError(err).WithField("task", id).Error("find task failed")
		return domain.Task{}, c.String(http.StatusInternalServerError, "failed to load task")
	}
	if !p.Sees(t, p.Role) {
		return domain.Task{}, c.String(http.StatusNotFound, "task not found")
	}
	return t, nil
}

func (h *handlers) getTask(c echo.Context) error {
	p, err := h.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	t, herr := h.visibleTask(c, p, c.Param("id"))
	if t.ID == "" {
		return herr
	}
	if team := c.QueryParam("teamId"); team != "" && team != t.TeamID {
		return c.String(http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *handlers) createTask(c echo.Context) error {
	p, err := h.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	teamID, rerr := resolveTeam(c, p)
	if teamID == "" {
		return rerr
	}
	var in domain.NewTask
	if err := decodeBody(c.Request().Body, &in); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if in.AssignedTo == "" {
		in.AssignedTo = p.UserID
	}
	t, err := in.Build(uuid.NewString(), teamID, h.Now())
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	if err := h.Store.CreateTask(c.Request().Context(), t); err != nil {
		h.logger.WithError(err).WithField("team", teamID).Error("create task failed")
		return c.String(http.StatusInternalServerError, "failed to create task")
	}
	h.emit(t, domain.TaskCreated)
	return c.JSON(http.StatusCreated, t)
}

func (h *handlers) updateTask(c echo.Context) (err error) {
	metrics, ctx := newTaskRequestMetrics(c.Request().Context(), h.logger, "/api/tasks/:id")
	c.SetRequest(c.Request().WithContext(ctx))
	defer func() {
		metrics.Log(c.Response().Status, err)
	}()

	authStart := time.Now()
	p, authErr := h.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	metrics.ObserveAuth(time.Since(authStart))
	if authErr != nil {
		metrics.SetErrorStage("auth")
		return c.String(http.StatusUnauthorized, authErr.Error())
	}

	var patch domain.TaskPatch
	if derr := decodeBody(c.Request().Body, &patch); derr != nil {
		metrics.SetErrorStage("invalid_body")
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if verr := patch.Validate(); verr != nil {
		metrics.SetErrorStage("invalid_patch")
		return c.String(http.StatusBadRequest, verr.Error())
	}

	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		metrics.SetErrorStage("invalid_idempotency_key")
		return c.String(http.StatusBadRequest, "idempotency key too long")
	}
	if key != "" && h.Deduper != nil {
		fresh, derr := h.Deduper.Claim(ctx, dedupeScope(c, p), key)
		if derr != nil {
			// Without the deduper the request is still safe: Apply converges.
			h.logger.WithError(derr).Warn("idempotency claim failed")
			key = ""
		} else if !fresh {
			return h.replay(c, metrics, p, key)
		}
	}

	id := c.Param("id")
	fetchStart := time.Now()
	t, herr := h.visibleTask(c, p, id)
	if t.ID == "" {
		h.release(c, p, key)
		metrics.SetErrorStage("lookup")
		return herr
	}
	t, changed, uerr := h.Store.UpdateTask(ctx, id, patch, h.Now())
	metrics.ObserveFetch(time.Since(fetchStart))
	if uerr != nil {
		h.release(c, p, key)
		if errors.Is(uerr, domain.ErrNotFound) {
			metrics.SetErrorStage("lookup")
			return c.String(http.StatusNotFound, "task not found")
		}
		if errors.Is(uerr, domain.ErrConflict) {
			metrics.SetErrorStage("conflict")
			h.logger.WithError(uerr).WithField("task", id).Warn("update task conflicted")
			return c.String(http.StatusConflict, "task was modified concurrently, retry")
		}
		metrics.SetErrorStage("storage")
		h.logger.WithError(uerr).WithField("task", id).Error("update task failed")
		return c.String(http.StatusInternalServerError, "failed to update task")
	}
	if key != "" && h.Deduper != nil {
		if cerr := h.Deduper.Complete(ctx, dedupeScope(c, p), key, t); cerr != nil {
			h.logger.WithError(cerr).Warn("idempotency complete failed")
		}
	}
	if changed {
		h.emit(t, domain.TaskUpdated)
	}
	metrics.SetTasksReturned(1)
	return c.JSON(http.StatusOK, t)
}

func (h *handlers) replay(c echo.Context, metrics *taskRequestMetrics, p Principal, key string) error {
	t, ok, err := h.Deduper.Replay(c.Request().Context(), dedupeScope(c, p), key)
	if err != nil {
		metrics.SetErrorStage("idempotency")
		h.logger.WithError(err).Error("idempotency replay failed")
		return c.String(http.StatusInternalServerError, "failed to replay request")
	}
	if !ok {
		metrics.SetErrorStage("idempotency_in_flight")
		return c.String(http.StatusConflict, "request with this idempotency key is in progress")
	}
	metrics.SetReplayed(true)
	metrics.SetTasksReturned(1)
	c.Response().Header().Set(headerReplayed, "true")
	return c.JSON(http.StatusOK, t)
}

// dedupeScope keys idempotency records by caller and task, so a key reused
// on another task is a fresh request.
func dedupeScope(c echo.Context, p Principal) string {
	return p.UserID + ":" + c.Param("id")
}

func (h *handlers) release(c echo.Context, p Principal, key string) {
	if key == "" || h.Deduper == nil {
		return
	}
	if err := h.Deduper.Release(c.Request().Context(), dedupeScope(c, p), key); err != nil {
		h.logger.WithError(err).WithField("key", key).Error("dedupe rollback failed")
	}
}

func (h *handlers) deleteTask(c echo.Context) error {
	p, err := h.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	id := c.Param("id")
	t, herr := h.visibleTask(c, p, id)
	if t.ID == "" {
		return herr
	}
	if !p.Role.SeesWholeTeam() {
		return c.String(http.StatusForbidden, "only managers can delete tasks")
	}
	if _, err := h.Store.DeleteTask(c.Request().Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.String(http.StatusNotFound, "task not found")
		}
		h.logger.WithError(err).WithField("task", id).Error("delete task failed")
		return c.String(http.StatusInternalServerError, "failed to delete task")
	}
	h.emit(t, domain.TaskDeleted)
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) listUsers(c echo.Context) error {
	if _, err := h.Auth.PrincipalFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization)); err != nil {
		return c.String(http.StatusUnauthorized, err.Error())
	}
	users, err := h.Store.ListUsers(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Error("list users failed")
		return c.String(http.StatusInternalServerError, "failed to list users")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *handlers) emit(t domain.Task, kind string) {
	ch := domain.TaskChange{TeamID: t.TeamID, TaskID: t.ID, Type: kind, Time: nextTimestamp()}
	if kind != domain.TaskDeleted {
		ch.Status = t.Status
	}
	h.sender.Send(ch)
}
