package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gtec-tasks/internal/export"
	"gtec-tasks/internal/model"
	"gtec-tasks/internal/service"
)

// Web handlers

func (s *Server) handleIndex(c *gin.Context) {
	svc := taskService(c)
	tasks, err := svc.Snapshot(c.Request.Context())
	if err != nil {
		log.Printf("load tasks: %v", err)
		c.HTML(http.StatusInternalServerError, "index.html", gin.H{"error": err.Error()})
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":          "GTEC Task Tracker",
		"tasks":          tasks,
		"kpis":           service.ComputeKPIs(tasks),
		"requesters":     s.requesters,
		"statuses":       model.ValidStatuses(),
		"reworkStatuses": model.ValidReworkStatuses(),
		"approvals":      model.ValidApprovals(),
		"today":          time.Now(),
		"message":        c.Query("msg"),
		"error":          c.Query("err"),
	})
}

func (s *Server) handleCreate(c *gin.Context) {
	hours, err := parseHours("hours_estimated", c.PostForm("hours_estimated"))
	if err != nil {
		redirectError(c, err)
		return
	}

	id, err := taskService(c).CreateTask(c.Request.Context(), service.TaskInput{
		ID:               c.PostForm("id"),
		Requester:        c.PostForm("requester"),
		RequestDate:      c.PostForm("request_date"),
		ProposedDeadline: c.PostForm("proposed_deadline"),
		Department:       c.PostForm("department"),
		Description:      c.PostForm("description"),
		HoursEstimated:   hours,
		DirectRelease:    c.PostForm("direct_release"),
		GTECUser:         c.PostForm("gtec_user"),
		GTECDeadline:     c.PostForm("gtec_deadline"),
		Status:           c.PostForm("status"),
	})
	if err != nil {
		redirectError(c, err)
		return
	}
	redirectMessage(c, fmt.Sprintf("Task %s added.", id))
}

func (s *Server) handleStatus(c *gin.Context) {
	upd, err := statusUpdateFromForm(c)
	if err != nil {
		redirectError(c, err)
		return
	}
	id, err := formTaskID(c)
	if err != nil {
		redirectError(c, err)
		return
	}
	task, err := taskService(c).UpdateStatusFields(c.Request.Context(), id, upd)
	if err != nil {
		redirectError(c, err)
		return
	}
	redirectMessage(c, fmt.Sprintf("Task %s updated: %s.", task.ID, task.Status))
}

func (s *Server) handleApproval(c *gin.Context) {
	id, err := formTaskID(c)
	if err != nil {
		redirectError(c, err)
		return
	}
	task, err := taskService(c).SubmitFinalApproval(c.Request.Context(), id,
		c.PostForm("final_approval"), c.PostForm("completion_date"))
	if err != nil {
		redirectError(c, err)
		return
	}
	msg := fmt.Sprintf("Task %s saved.", task.ID)
	if task.FinalApproval != "" {
		msg = fmt.Sprintf("Task %s approval: %s.", task.ID, task.FinalApproval)
	}
	redirectMessage(c, msg)
}

// formTaskID reads the task id from the path, or from the "task" field when
// the form posts to a fixed URL.
func formTaskID(c *gin.Context) (string, error) {
	if id := c.Param("id"); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(c.PostForm("task")); id != "" {
		return id, nil
	}
	return "", model.Missing("task")
}

func (s *Server) handleExport(c *gin.Context) {
	tasks, err := taskService(c).Snapshot(c.Request.Context())
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(time.Now())))
	c.Header("Content-Type", export.ContentType)
	c.Status(http.StatusOK)
	if err := export.WriteWorkbook(c.Writer, tasks); err != nil {
		log.Printf("export workbook: %v", err)
	}
}

func (s *Server) handleEndSession(c *gin.Context) {
	if s.sessions != nil {
		if id, err := c.Cookie(SessionCookie); err == nil && s.sessions.Discard(id) {
			log.Printf("[info] session discarded id=%s", id)
		}
		c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func statusUpdateFromForm(c *gin.Context) (service.StatusUpdate, error) {
	upd := service.StatusUpdate{
		Status:          c.PostForm("status"),
		DirectRelease:   c.PostForm("direct_release"),
		FinalCheck:      c.PostForm("final_check"),
		ReworkType:      c.PostForm("rework_type"),
		ReworkConfirmed: isChecked(c.PostForm("rework_confirmed")),
		ReworkStatus:    c.PostForm("rework_status"),
		FinalApproval:   c.PostForm("final_approval"),
	}
	if raw := strings.TrimSpace(c.PostForm("rework_hours")); raw != "" {
		h, err := parseHours("rework_hours", raw)
		if err != nil {
			return upd, err
		}
		upd.ReworkHours = &h
	}
	return upd, nil
}

func parseHours(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	h, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, model.Invalid(field, raw)
	}
	return h, nil
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func redirectMessage(c *gin.Context, msg string) {
	c.Redirect(http.StatusSeeOther, "/?"+url.Values{"msg": {msg}}.Encode())
}

func redirectError(c *gin.Context, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		log.Printf("request %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.Redirect(http.StatusSeeOther, "/?"+url.Values{"err": {err.Error()}}.Encode())
}

// statusFor maps lifecycle and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidEnumValue),
		errors.Is(err, model.ErrMissingRequiredField),
		errors.Is(err, model.ErrIllegalTransition),
		errors.Is(err, model.ErrUnparseableDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
