package server

import (
	"errors"
	"net/http"

	"questlog/internal/assess"
	"questlog/internal/config"
	"questlog/internal/db"
	"questlog/internal/ledger"
	"questlog/internal/notify"
	"questlog/internal/planner"
	"questlog/internal/schedule"
	"questlog/internal/syncer"
	"questlog/internal/tasks"
	"github.com/gin-gonic/gin"
)

type handlers struct {
	stores   *db.Stores
	provider assess.Provider
	notifier *notify.Notifier
	cfg      *config.Config
	syncer   *syncer.Syncer
}

func (h *handlers) createQuest(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	quest, err := planner.CreateQuest(h.stores.Planner, planner.QuestOpts{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, quest)
}

func (h *handlers) listQuests(c *gin.Context) {
	quests, err := planner.ListQuests(h.stores.Planner)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quests)
}

func (h *handlers) createMilestone(c *gin.Context) {
	var req struct {
		QuestID     string `json:"questId"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Status      string `json:"status"`
		Ordinal     int    `json:"ordinal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ms, err := planner.CreateMilestone(h.stores.Planner, planner.MilestoneOpts{
		QuestID:     req.QuestID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Ordinal:     req.Ordinal,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ms)
}

func (h *handlers) createCheckpoint(c *gin.Context) {
	var req struct {
		MilestoneID string `json:"milestoneId"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cp, err := planner.CreateCheckpoint(h.stores.Planner, planner.CheckpointOpts{
		MilestoneID: req.MilestoneID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cp)
}

func (h *handlers) checkpointProgress(c *gin.Context) {
	cp, err := planner.GetCheckpoint(h.stores.Planner, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkpointId": cp.ID,
		"progress":     cp.Progress,
		"isCompleted":  cp.IsCompleted,
	})
}

func (h *handlers) checkpointHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := planner.GetCheckpoint(h.stores.Planner, id); err != nil {
		h.fail(c, err)
		return
	}
	entries, err := ledger.History(h.stores.Planner, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *handlers) createCommit(c *gin.Context) {
	var req struct {
		QuestID     string   `json:"questId"`
		MilestoneID string   `json:"milestoneId"`
		CommitDate  string   `json:"commitDate"`
		Content     string   `json:"content"`
		Attachments []string `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	commit, err := planner.CreateCommit(h.stores.Planner, planner.CommitOpts{
		QuestID:     req.QuestID,
		MilestoneID: req.MilestoneID,
		CommitDate:  req.CommitDate,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": commit.ID})
}

func (h *handlers) assessCommit(c *gin.Context) {
	result, err := assess.AssessCommit(c.Request.Context(), h.stores.Planner, h.provider, c.Param("id"), assess.Options{
		Timeout:      h.cfg.LLM.Timeout(),
		AbortOnError: h.cfg.Assessment.AbortOnError,
		MaxReasonLen: h.cfg.Assessment.MaxReasonLen,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	for _, change := range result.Changes {
		if change.Completed {
			h.notifier.Send(c.Request.Context(), notify.CheckpointCompletedEvent(change))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"commitId":    result.CommitID,
		"model":       result.Model,
		"assessments": len(result.Assessments),
		"changes":     result.Changes,
		"noOps":       result.NoOps,
		"skipped":     result.Skipped,
		"failed":      result.Failed,
	})
}

func (h *handlers) createTask(c *gin.Context) {
	var req struct {
		Title    string `json:"title"`
		Type     string `json:"type"`
		ParentID string `json:"parentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := tasks.Create(h.stores.Tasks, tasks.CreateOpts{
		Title:    req.Title,
		Type:     req.Type,
		ParentID: req.ParentID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *handlers) listTasks(c *gin.Context) {
	out, err := tasks.List(h.stores.Tasks)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) createBlock(c *gin.Context) {
	var req struct {
		Date             string `json:"date"`
		StartTime        string `json:"startTime"`
		EndTime          string `json:"endTime"`
		TaskID           string `json:"taskId"`
		TaskTitle        string `json:"taskTitle"`
		ParentTitle      string `json:"parentTitle"`
		GrandparentTitle string `json:"grandparentTitle"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	block, err := schedule.CreateBlock(h.stores.Schedule, schedule.BlockOpts{
		Date:             req.Date,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		TaskID:           req.TaskID,
		TaskTitle:        req.TaskTitle,
		ParentTitle:      req.ParentTitle,
		GrandparentTitle: req.GrandparentTitle,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, block)
}

func (h *handlers) listBlocks(c *gin.Context) {
	blocks, err := schedule.ListBlocks(h.stores.Schedule, c.Query("date"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, blocks)
}

// updateBlock moves a block and/or transitions its status. Status changes
// route through the syncer so the completed boundary stays consistent with
// the tasks store.
func (h *handlers) updateBlock(c *gin.Context) {
	var req struct {
		Status    string `json:"status"`
		Date      string `json:"date"`
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")

	if req.Date != "" || req.StartTime != "" || req.EndTime != "" {
		if err := schedule.UpdateTimes(h.stores.Schedule, id, req.Date, req.StartTime, req.EndTime); err != nil {
			h.fail(c, err)
			return
		}
	}

	if req.Status != "" {
		block, err := h.syncer.SetStatus(id, req.Status)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, block)
		return
	}

	block, err := schedule.GetBlock(h.stores.Schedule, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, block)
}

func (h *handlers) deleteBlock(c *gin.Context) {
	if err := schedule.DeleteBlock(h.stores.Schedule, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// fail maps domain errors to HTTP responses. The sync-inconsistency case
// gets its own status and an operator alert: it is the one error that must
// not look like a retryable failure.
func (h *handlers) fail(c *gin.Context, err error) {
	var incErr *syncer.InconsistencyError
	if errors.As(err, &incErr) {
		h.notifier.Send(c.Request.Context(), notify.SyncInconsistentEvent(incErr))
		c.JSON(http.StatusConflict, gin.H{
			"error":   "sync_inconsistent",
			"blockId": incErr.BlockID,
			"detail":  incErr.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, planner.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, schedule.ErrNotFound),
		errors.Is(err, tasks.ErrNotFound),
		errors.Is(err, syncer.ErrNotFound),
		errors.Is(err, syncer.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidRange),
		errors.Is(err, syncer.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, assess.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, assess.ErrMalformed):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
