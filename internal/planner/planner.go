// Package planner provides lifecycle operations for quests, milestones,
// checkpoints and commits on the planner store.
package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"questlog/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound marks lookups of entities that do not exist; match with
// errors.Is.
var ErrNotFound = errors.New("planner: not found")

// QuestOpts holds parameters for creating a quest.
type QuestOpts struct {
	Title       string
	Description string
}

// CreateQuest creates a new quest with an auto-generated ID.
func CreateQuest(db *gorm.DB, opts QuestOpts) (*models.Quest, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("planner: quest title is required")
	}
	id, err := models.NewID("qu")
	if err != nil {
		return nil, err
	}
	quest := models.Quest{
		ID:          id,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      "active",
	}
	if err := db.Create(&quest).Error; err != nil {
		return nil, fmt.Errorf("planner: create quest: %w", err)
	}
	return &quest, nil
}

// GetQuest retrieves a quest by ID.
func GetQuest(db *gorm.DB, id string) (*models.Quest, error) {
	var quest models.Quest
	if err := db.Where("id = ?", id).First(&quest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: quest %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("planner: get quest %s: %w", id, err)
	}
	return &quest, nil
}

// ListQuests returns all quests ordered by creation time.
func ListQuests(db *gorm.DB) ([]models.Quest, error) {
	var quests []models.Quest
	if err := db.Order("created_at ASC").Find(&quests).Error; err != nil {
		return nil, fmt.Errorf("planner: list quests: %w", err)
	}
	return quests, nil
}

// MilestoneOpts holds parameters for creating a milestone.
type MilestoneOpts struct {
	QuestID     string
	Title       string
	Description string
	Status      string // current, next, future, completed; default future
	Ordinal     int
}

// CreateMilestone creates a new milestone under a quest.
func CreateMilestone(db *gorm.DB, opts MilestoneOpts) (*models.Milestone, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("planner: milestone title is required")
	}
	if _, err := GetQuest(db, opts.QuestID); err != nil {
		return nil, err
	}
	if opts.Status == "" {
		opts.Status = "future"
	}
	switch opts.Status {
	case "current", "next", "future", "completed":
	default:
		return nil, fmt.Errorf("planner: invalid milestone status %q", opts.Status)
	}
	id, err := models.NewID("ms")
	if err != nil {
		return nil, err
	}
	ms := models.Milestone{
		ID:          id,
		QuestID:     opts.QuestID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      opts.Status,
		Ordinal:     opts.Ordinal,
	}
	if err := db.Create(&ms).Error; err != nil {
		return nil, fmt.Errorf("planner: create milestone: %w", err)
	}
	return &ms, nil
}

// CurrentMilestone returns the quest's milestone with status "current", or
// gorm.ErrRecordNotFound when the quest has none.
func CurrentMilestone(db *gorm.DB, questID string) (*models.Milestone, error) {
	var ms models.Milestone
	err := db.Where("quest_id = ? AND status = ?", questID, "current").
		Order("ordinal ASC").First(&ms).Error
	if err != nil {
		return nil, err
	}
	return &ms, nil
}

// CheckpointOpts holds parameters for creating a checkpoint.
type CheckpointOpts struct {
	MilestoneID string
	Title       string
	Description string
}

// CreateCheckpoint creates a new checkpoint under a milestone, starting at
// zero progress.
func CreateCheckpoint(db *gorm.DB, opts CheckpointOpts) (*models.Checkpoint, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("planner: checkpoint title is required")
	}
	var count int64
	if err := db.Model(&models.Milestone{}).Where("id = ?", opts.MilestoneID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("planner: check milestone %s: %w", opts.MilestoneID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: milestone %s", ErrNotFound, opts.MilestoneID)
	}
	id, err := models.NewID("cp")
	if err != nil {
		return nil, err
	}
	cp := models.Checkpoint{
		ID:          id,
		MilestoneID: opts.MilestoneID,
		Title:       opts.Title,
		Description: opts.Description,
	}
	if err := db.Create(&cp).Error; err != nil {
		return nil, fmt.Errorf("planner: create checkpoint: %w", err)
	}
	return &cp, nil
}

// GetCheckpoint retrieves a checkpoint by ID.
func GetCheckpoint(db *gorm.DB, id string) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	if err := db.Where("id = ?", id).First(&cp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: checkpoint %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("planner: get checkpoint %s: %w", id, err)
	}
	return &cp, nil
}

// OpenCheckpoints returns the milestone's not-yet-completed checkpoints,
// ordered by creation time.
func OpenCheckpoints(db *gorm.DB, milestoneID string) ([]models.Checkpoint, error) {
	var cps []models.Checkpoint
	err := db.Where("milestone_id = ? AND is_completed = ?", milestoneID, false).
		Order("created_at ASC").Find(&cps).Error
	if err != nil {
		return nil, fmt.Errorf("planner: open checkpoints for %s: %w", milestoneID, err)
	}
	return cps, nil
}

// CommitOpts holds parameters for creating a commit.
type CommitOpts struct {
	QuestID     string
	MilestoneID string // optional
	CommitDate  string // YYYY-MM-DD
	Content     string
	Attachments []string
}

// CreateCommit records a daily progress submission. Date and quest linkage
// are fixed at creation.
func CreateCommit(db *gorm.DB, opts CommitOpts) (*models.Commit, error) {
	if opts.Content == "" {
		return nil, fmt.Errorf("planner: commit content is required")
	}
	if _, err := time.Parse("2006-01-02", opts.CommitDate); err != nil {
		return nil, fmt.Errorf("planner: invalid commit date %q: %w", opts.CommitDate, err)
	}
	if _, err := GetQuest(db, opts.QuestID); err != nil {
		return nil, err
	}
	if opts.MilestoneID != "" {
		var ms models.Milestone
		if err := db.Where("id = ? AND quest_id = ?", opts.MilestoneID, opts.QuestID).First(&ms).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: milestone %s in quest %s", ErrNotFound, opts.MilestoneID, opts.QuestID)
			}
			return nil, fmt.Errorf("planner: check milestone %s: %w", opts.MilestoneID, err)
		}
	}

	attachments, err := marshalAttachments(opts.Attachments)
	if err != nil {
		return nil, err
	}
	id, err := models.NewID("cm")
	if err != nil {
		return nil, err
	}
	commit := models.Commit{
		ID:          id,
		QuestID:     opts.QuestID,
		CommitDate:  opts.CommitDate,
		Content:     opts.Content,
		Attachments: attachments,
	}
	if opts.MilestoneID != "" {
		commit.MilestoneID = &opts.MilestoneID
	}
	if err := db.Create(&commit).Error; err != nil {
		return nil, fmt.Errorf("planner: create commit: %w", err)
	}
	return &commit, nil
}

// GetCommit retrieves a commit by ID.
func GetCommit(db *gorm.DB, id string) (*models.Commit, error) {
	var commit models.Commit
	if err := db.Where("id = ?", id).First(&commit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: commit %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("planner: get commit %s: %w", id, err)
	}
	return &commit, nil
}

// UpdateCommit modifies a commit's content and attachments. Date and quest
// linkage are immutable and cannot be changed here.
func UpdateCommit(db *gorm.DB, id, content string, attachments []string) error {
	if content == "" {
		return fmt.Errorf("planner: commit content is required")
	}
	encoded, err := marshalAttachments(attachments)
	if err != nil {
		return err
	}
	result := db.Model(&models.Commit{}).Where("id = ?", id).Updates(map[string]interface{}{
		"content":     content,
		"attachments": encoded,
	})
	if result.Error != nil {
		return fmt.Errorf("planner: update commit %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: commit %s", ErrNotFound, id)
	}
	return nil
}

// CommitsSince returns commits created after the cutoff, newest first.
func CommitsSince(db *gorm.DB, since time.Time) ([]models.Commit, error) {
	var commits []models.Commit
	if err := db.Where("created_at >= ?", since).Order("created_at DESC").Find(&commits).Error; err != nil {
		return nil, fmt.Errorf("planner: commits since %s: %w", since.Format(time.RFC3339), err)
	}
	return commits, nil
}

func marshalAttachments(attachments []string) (string, error) {
	if attachments == nil {
		attachments = []string{}
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return "", fmt.Errorf("planner: marshal attachments: %w", err)
	}
	return string(data), nil
}
