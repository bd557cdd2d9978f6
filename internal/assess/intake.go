package assess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questlog/internal/ledger"
	"questlog/internal/models"
	"questlog/internal/planner"
	"gorm.io/gorm"
)

// Options tunes a single assessment run.
type Options struct {
	// Timeout bounds the provider call. Zero means no extra bound beyond
	// the caller's context.
	Timeout time.Duration

	// AbortOnError stops processing further suggestions after the first
	// ledger failure. Suggestions already applied stay committed either
	// way; there is no batch rollback.
	AbortOnError bool

	// MaxReasonLen bounds the change reason derived from the assessment
	// reasoning. Zero means the ledger's own bound applies.
	MaxReasonLen int
}

// Result reports what one assessment run did. Batch outcomes are always
// counts, never a bare boolean.
type Result struct {
	CommitID    string
	Model       string
	Assessments []models.Assessment  // persisted verbatim, unclamped
	Changes     []ledger.ApplyResult // actual progress changes, no-ops excluded
	NoOps       int                  // suggestions the clamp discarded
	Skipped     int                  // suggestions for unknown checkpoint ids
	Failed      int                  // suggestions that hit a storage failure
}

// AssessCommit runs the full intake flow for one commit: load the commit,
// resolve its open checkpoints, call the assessment service once, then turn
// each valid suggestion into an Assessment row and a ledger application.
//
// Before the provider call succeeds nothing has been written, so provider
// unavailability or a malformed response has zero side effects and is safe
// to retry. After that, suggestions are applied independently: a failure on
// one is counted in Result.Failed and, unless opts.AbortOnError is set,
// processing continues with the rest. Earlier applications are never rolled
// back.
func AssessCommit(ctx context.Context, db *gorm.DB, provider Provider, commitID string, opts Options) (*Result, error) {
	commit, err := planner.GetCommit(db, commitID)
	if err != nil {
		return nil, err
	}

	checkpoints, err := openCheckpoints(db, commit)
	if err != nil {
		return nil, err
	}

	result := &Result{CommitID: commitID}
	if len(checkpoints) == 0 {
		return result, nil
	}

	req, err := BuildRequest(commit, checkpoints)
	if err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, err := provider.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		// Context timeouts and anything else the provider didn't classify
		// count as the service being unavailable.
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	result.Model = resp.Model

	parsed, err := parsePayload(resp.Content)
	if err != nil {
		return nil, err
	}

	sent := make(map[string]bool, len(checkpoints))
	for _, cp := range checkpoints {
		sent[cp.ID] = true
	}

	for _, sug := range parsed.Checkpoints {
		// The service should not invent checkpoint ids, but it is not
		// trusted: unknown ids are skipped, not errors.
		if !sent[sug.CheckpointID] {
			result.Skipped++
			continue
		}

		assessment := models.Assessment{
			CommitID:         commitID,
			CheckpointID:     sug.CheckpointID,
			AssessedProgress: sug.NewProgress,
			Reasoning:        sug.Reasoning,
			Confidence:       sug.Confidence,
			Model:            resp.Model,
		}
		if err := db.Create(&assessment).Error; err != nil {
			result.Failed++
			if opts.AbortOnError {
				return result, fmt.Errorf("%w: persist assessment for %s: %v", ledger.ErrStorage, sug.CheckpointID, err)
			}
			continue
		}
		result.Assessments = append(result.Assessments, assessment)

		applied, err := ledger.Apply(db, sug.CheckpointID, sug.NewProgress, ledger.Source{
			CommitID: commitID,
			Reason:   reason(sug.Reasoning, opts.MaxReasonLen),
		})
		if err != nil {
			result.Failed++
			if opts.AbortOnError {
				return result, err
			}
			continue
		}
		if applied.Changed {
			result.Changes = append(result.Changes, *applied)
		} else {
			result.NoOps++
		}
	}

	return result, nil
}

// openCheckpoints resolves the checkpoints a commit should be assessed
// against: the commit's explicit milestone when set, otherwise the quest's
// current milestone. A quest with no current milestone simply yields none.
func openCheckpoints(db *gorm.DB, commit *models.Commit) ([]models.Checkpoint, error) {
	milestoneID := ""
	if commit.MilestoneID != nil {
		milestoneID = *commit.MilestoneID
	} else {
		ms, err := planner.CurrentMilestone(db, commit.QuestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("assess: resolve current milestone: %w", err)
		}
		milestoneID = ms.ID
	}
	return planner.OpenCheckpoints(db, milestoneID)
}

func reason(text string, maxLen int) string {
	if maxLen > 0 && len(text) > maxLen {
		runes := []rune(text)
		for len(string(runes)) > maxLen {
			runes = runes[:len(runes)-1]
		}
		return string(runes)
	}
	return text
}
