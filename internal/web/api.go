package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gtec-tasks/internal/service"
)

type createTaskRequest struct {
	ID               string  `json:"id"`
	Requester        string  `json:"requester"`
	RequestDate      string  `json:"requestDate"`
	ProposedDeadline string  `json:"proposedDeadline"`
	Department       string  `json:"department"`
	Description      string  `json:"description"`
	HoursEstimated   float64 `json:"hoursEstimated"`
	DirectRelease    string  `json:"directRelease"`
	GTECUser         string  `json:"gtecUser"`
	GTECDeadline     string  `json:"gtecDeadline"`
	Status           string  `json:"status"`
}

type statusRequest struct {
	Status          string   `json:"status"`
	DirectRelease   string   `json:"directRelease"`
	FinalCheck      string   `json:"finalCheck"`
	ReworkType      string   `json:"reworkType"`
	ReworkHours     *float64 `json:"reworkHours"`
	ReworkConfirmed bool     `json:"reworkConfirmed"`
	ReworkStatus    string   `json:"reworkStatus"`
	FinalApproval   string   `json:"finalApproval"`
}

type approvalRequest struct {
	FinalApproval  string `json:"finalApproval"`
	CompletionDate string `json:"completionDate"`
}

// API handlers

func (s *Server) handleAPIList(c *gin.Context) {
	tasks, err := taskService(c).Snapshot(c.Request.Context())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    tasks,
		"count":   len(tasks),
	})
}

func (s *Server) handleAPICreate(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	svc := taskService(c)
	id, err := svc.CreateTask(c.Request.Context(), service.TaskInput(req))
	if err != nil {
		apiError(c, err)
		return
	}
	task, err := svc.GetTask(c.Request.Context(), id)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": task})
}

func (s *Server) handleAPITask(c *gin.Context) {
	task, err := taskService(c).GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}

func (s *Server) handleAPIStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	task, err := taskService(c).UpdateStatusFields(c.Request.Context(), c.Param("id"), service.StatusUpdate(req))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}

func (s *Server) handleAPIApproval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	task, err := taskService(c).SubmitFinalApproval(c.Request.Context(), c.Param("id"), req.FinalApproval, req.CompletionDate)
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": task})
}

func (s *Server) handleAPIKPIs(c *gin.Context) {
	kpis, err := taskService(c).KPIs(c.Request.Context())
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": kpis})
}

func apiError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}
