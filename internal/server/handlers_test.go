package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"questlog/internal/assess"
	"questlog/internal/config"
	"questlog/internal/db"
	"questlog/internal/models"
	"questlog/internal/notify"
	"questlog/internal/planner"
	"questlog/internal/tasks"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testAPI struct {
	router   *gin.Engine
	stores   *db.Stores
	provider *assess.MockProvider
	adapter  *notify.MockAdapter
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	open := func(dst ...interface{}) *gorm.DB {
		t.Helper()
		conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
		if err := conn.AutoMigrate(dst...); err != nil {
			t.Fatalf("migrate test db: %v", err)
		}
		return conn
	}

	stores := &db.Stores{
		Planner: open(
			&models.Quest{}, &models.Milestone{}, &models.Checkpoint{},
			&models.Commit{}, &models.ProgressHistoryEntry{}, &models.Assessment{},
		),
		Schedule: open(&models.ScheduleBlock{}),
		Tasks:    open(&models.Task{}, &models.CompletionRecord{}),
	}
	provider := assess.NewMockProvider()
	adapter := notify.NewMockAdapter()

	router := NewRouter(Opts{
		Stores:   stores,
		Provider: provider,
		Notifier: notify.New(adapter),
		Config:   config.Default(),
	})
	return &testAPI{router: router, stores: stores, provider: provider, adapter: adapter}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestQuestEndpoints(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/quests", gin.H{"title": "Learn Go"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create quest: status = %d, body %s", w.Code, w.Body.String())
	}
	var quest models.Quest
	decode(t, w, &quest)
	if quest.ID == "" || quest.Status != "active" {
		t.Errorf("quest = %+v", quest)
	}

	w = api.do(t, http.MethodGet, "/api/quests", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list quests: status = %d", w.Code)
	}
	var quests []models.Quest
	decode(t, w, &quests)
	if len(quests) != 1 {
		t.Errorf("quests = %d, want 1", len(quests))
	}
}

func TestCheckpointProgressEndpoints(t *testing.T) {
	api := newTestAPI(t)

	quest, err := planner.CreateQuest(api.stores.Planner, planner.QuestOpts{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("seed quest: %v", err)
	}
	ms, err := planner.CreateMilestone(api.stores.Planner, planner.MilestoneOpts{
		QuestID: quest.ID, Title: "Basics", Status: "current",
	})
	if err != nil {
		t.Fatalf("seed milestone: %v", err)
	}
	cp, err := planner.CreateCheckpoint(api.stores.Planner, planner.CheckpointOpts{
		MilestoneID: ms.ID, Title: "Read the tour",
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	w := api.do(t, http.MethodGet, "/api/checkpoints/"+cp.ID+"/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("progress: status = %d", w.Code)
	}
	var progress struct {
		CheckpointID string `json:"checkpointId"`
		Progress     int    `json:"progress"`
		IsCompleted  bool   `json:"isCompleted"`
	}
	decode(t, w, &progress)
	if progress.CheckpointID != cp.ID || progress.Progress != 0 || progress.IsCompleted {
		t.Errorf("progress = %+v", progress)
	}

	if w := api.do(t, http.MethodGet, "/api/checkpoints/cp-nope0/progress", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing checkpoint: status = %d, want 404", w.Code)
	}
	if w := api.do(t, http.MethodGet, "/api/checkpoints/cp-nope0/history", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing checkpoint history: status = %d, want 404", w.Code)
	}

	w = api.do(t, http.MethodGet, "/api/checkpoints/"+cp.ID+"/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: status = %d", w.Code)
	}
	var entries []models.ProgressHistoryEntry
	decode(t, w, &entries)
	if len(entries) != 0 {
		t.Errorf("history = %d entries, want 0", len(entries))
	}
}

func TestAssessEndpoint(t *testing.T) {
	api := newTestAPI(t)

	quest, err := planner.CreateQuest(api.stores.Planner, planner.QuestOpts{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("seed quest: %v", err)
	}
	ms, err := planner.CreateMilestone(api.stores.Planner, planner.MilestoneOpts{
		QuestID: quest.ID, Title: "Basics", Status: "current",
	})
	if err != nil {
		t.Fatalf("seed milestone: %v", err)
	}
	cp, err := planner.CreateCheckpoint(api.stores.Planner, planner.CheckpointOpts{
		MilestoneID: ms.ID, Title: "Read the tour",
	})
	if err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	w := api.do(t, http.MethodPost, "/api/commits", gin.H{
		"questId":    quest.ID,
		"commitDate": "2026-09-01",
		"content":    "Finished the tour.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create commit: status = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	// Provider not stocked yet: the empty queue is treated as the service
	// being unavailable.
	if w := api.do(t, http.MethodPost, "/api/commits/"+created.ID+"/assess", nil); w.Code != http.StatusBadGateway {
		t.Errorf("unavailable: status = %d, want 502", w.Code)
	}

	api.provider.AddResponse(assess.MockResponse{
		Content: json.RawMessage(fmt.Sprintf(
			`{"checkpoints":[{"checkpointId":%q,"newProgress":100,"reasoning":"the whole tour is done"}]}`, cp.ID)),
	})
	w = api.do(t, http.MethodPost, "/api/commits/"+created.ID+"/assess", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("assess: status = %d, body %s", w.Code, w.Body.String())
	}
	var result struct {
		CommitID    string `json:"commitId"`
		Assessments int    `json:"assessments"`
		Changes     []struct {
			CheckpointID string `json:"CheckpointID"`
			Final        int    `json:"Final"`
			Completed    bool   `json:"Completed"`
		} `json:"changes"`
	}
	decode(t, w, &result)
	if result.CommitID != created.ID || result.Assessments != 1 || len(result.Changes) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if !result.Changes[0].Completed || result.Changes[0].Final != 100 {
		t.Errorf("change = %+v, want completed at 100", result.Changes[0])
	}

	// Completing a checkpoint pushes a notification.
	events := api.adapter.Sent()
	if len(events) != 1 || events[0].Type != notify.EventCheckpointCompleted {
		t.Errorf("events = %+v, want one checkpoint_completed", events)
	}

	// Malformed canned output maps to 422.
	api.provider.AddResponse(assess.MockResponse{
		Content: json.RawMessage(`{"nonsense":true}`),
	})
	if w := api.do(t, http.MethodPost, "/api/commits/"+created.ID+"/assess", nil); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed: status = %d, want 422", w.Code)
	}

	if w := api.do(t, http.MethodPost, "/api/commits/cm-nope0/assess", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing commit: status = %d, want 404", w.Code)
	}
}

func TestScheduleBlockEndpoints(t *testing.T) {
	api := newTestAPI(t)

	task, err := tasks.Create(api.stores.Tasks, tasks.CreateOpts{Title: "Write tests"})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	w := api.do(t, http.MethodPost, "/api/schedule/blocks", gin.H{
		"date":      "2026-09-01",
		"startTime": "09:00",
		"endTime":   "10:30",
		"taskId":    task.ID,
		"taskTitle": task.Title,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create block: status = %d, body %s", w.Code, w.Body.String())
	}
	var block models.ScheduleBlock
	decode(t, w, &block)
	if block.Status != models.BlockScheduled {
		t.Errorf("status = %q, want scheduled", block.Status)
	}

	// Invalid status maps to 400.
	if w := api.do(t, http.MethodPatch, "/api/schedule/blocks/"+block.ID, gin.H{"status": "done"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status: status = %d, want 400", w.Code)
	}

	// Completing through the API writes the completion record.
	w = api.do(t, http.MethodPatch, "/api/schedule/blocks/"+block.ID, gin.H{"status": "completed"})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: status = %d, body %s", w.Code, w.Body.String())
	}
	if _, err := tasks.CompletionRecordFor(api.stores.Tasks, task.ID); err != nil {
		t.Errorf("no completion record after completing via API: %v", err)
	}

	// Moving the time box leaves status alone.
	w = api.do(t, http.MethodPatch, "/api/schedule/blocks/"+block.ID, gin.H{
		"date": "2026-09-02", "startTime": "11:00", "endTime": "12:00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("move: status = %d, body %s", w.Code, w.Body.String())
	}
	var moved models.ScheduleBlock
	decode(t, w, &moved)
	if moved.Status != models.BlockCompleted || moved.Date != "2026-09-02" {
		t.Errorf("moved = %+v, want completed on 2026-09-02", moved)
	}

	if w := api.do(t, http.MethodPatch, "/api/schedule/blocks/sb-nope0", gin.H{"status": "completed"}); w.Code != http.StatusNotFound {
		t.Errorf("missing block: status = %d, want 404", w.Code)
	}

	w = api.do(t, http.MethodGet, "/api/schedule/blocks?date=2026-09-02", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	var blocks []models.ScheduleBlock
	decode(t, w, &blocks)
	if len(blocks) != 1 {
		t.Errorf("blocks = %d, want 1", len(blocks))
	}

	if w := api.do(t, http.MethodDelete, "/api/schedule/blocks/"+block.ID, nil); w.Code != http.StatusOK {
		t.Errorf("delete: status = %d, want 200", w.Code)
	}
	// Deleting the block never cascades into the tasks store.
	if _, err := tasks.CompletionRecordFor(api.stores.Tasks, task.ID); err != nil {
		t.Errorf("completion record gone after block delete: %v", err)
	}
}

func TestCompleteBlockWithMissingTask(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/schedule/blocks", gin.H{
		"date":      "2026-09-01",
		"startTime": "09:00",
		"endTime":   "10:00",
		"taskId":    "tk-gone0",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create block: status = %d", w.Code)
	}
	var block models.ScheduleBlock
	decode(t, w, &block)

	if w := api.do(t, http.MethodPatch, "/api/schedule/blocks/"+block.ID, gin.H{"status": "completed"}); w.Code != http.StatusNotFound {
		t.Errorf("missing task: status = %d, want 404", w.Code)
	}

	// The saga rolled the status back before answering.
	w = api.do(t, http.MethodGet, "/api/schedule/blocks?date=2026-09-01", nil)
	var blocks []models.ScheduleBlock
	decode(t, w, &blocks)
	if len(blocks) != 1 || blocks[0].Status != models.BlockScheduled {
		t.Errorf("blocks = %+v, want one still scheduled", blocks)
	}
}

func TestSyncInconsistencyResponse(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/schedule/blocks", gin.H{
		"date":      "2026-09-01",
		"startTime": "09:00",
		"endTime":   "10:00",
		"taskId":    "tk-gone0",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create block: status = %d", w.Code)
	}
	var block models.ScheduleBlock
	decode(t, w, &block)

	// Fail every schedule-store update after the first so the compensating
	// write cannot land.
	updates := 0
	err := api.stores.Schedule.Callback().Update().Before("gorm:update").Register("test_fail_compensation", func(d *gorm.DB) {
		updates++
		if updates > 1 {
			d.AddError(fmt.Errorf("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	w = api.do(t, http.MethodPatch, "/api/schedule/blocks/"+block.ID, gin.H{"status": "completed"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Error   string `json:"error"`
		BlockID string `json:"blockId"`
	}
	decode(t, w, &resp)
	if resp.Error != "sync_inconsistent" || resp.BlockID != block.ID {
		t.Errorf("response = %+v", resp)
	}

	// The drift raised an operator alert.
	events := api.adapter.Sent()
	if len(events) != 1 || events[0].Type != notify.EventSyncInconsistent {
		t.Errorf("events = %+v, want one sync_inconsistent alert", events)
	}
}

func TestCreateTaskEndpoint(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "Ship the release"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: status = %d, body %s", w.Code, w.Body.String())
	}
	var task models.Task
	decode(t, w, &task)

	w = api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "Cut the branch", "parentId": task.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("create child: status = %d", w.Code)
	}
	var child models.Task
	decode(t, w, &child)
	if child.Level != models.LevelChild {
		t.Errorf("child level = %d, want 1", child.Level)
	}

	if w := api.do(t, http.MethodPost, "/api/tasks", gin.H{"title": "Orphan", "parentId": "tk-nope0"}); w.Code != http.StatusNotFound {
		t.Errorf("missing parent: status = %d, want 404", w.Code)
	}
}
