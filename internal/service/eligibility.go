package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/institute-admission-api/internal/models"
	appErrors "github.com/noah-isme/institute-admission-api/pkg/errors"
)

// Rejection and warning messages produced by the eligibility checks.
const (
	msgBatchInactive     = "Batch is not active"
	msgBatchFull         = "Batch is full"
	msgAlreadyInBatch    = "Already enrolled in this batch"
	msgPrerequisitesMiss = "Prerequisites not met: %s"
	msgScheduleConflict  = "Schedule conflict: %s"
	msgConflictsDetected = "Schedule conflicts detected (%d conflict(s))"
)

// checkEligibility evaluates whether the student may take a seat in the batch. The
// batch count must already reflect live rows. Checks run in a fixed order and the first
// blocking failure ends the evaluation; warnings accumulate.
func checkEligibility(ctx context.Context, r eligibilityReader, studentID string, batch *models.Batch) (*models.EligibilityResult, error) {
	result := &models.EligibilityResult{Errors: []string{}, Warnings: []string{}}
	reject := func(msg string) (*models.EligibilityResult, error) {
		result.Errors = append(result.Errors, msg)
		return result, nil
	}

	if !batch.IsActive {
		return reject(msgBatchInactive)
	}
	if batch.IsFull() {
		return reject(msgBatchFull)
	}

	open, err := r.HasOpenEnrollment(ctx, studentID, batch.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing enrollment")
	}
	if open {
		return reject(msgAlreadyInBatch)
	}

	held, err := r.FindLiveCourseEnrollment(ctx, studentID, batch.CourseID, batch.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check course enrollment")
	}
	if held != nil {
		return reject(fmt.Sprintf("Already enrolled in %s (Batch %d)", held.CourseName, held.BatchNumber))
	}

	if batch.PrerequisiteEnforcement != models.PrerequisiteNone {
		progress, err := r.ListPrerequisiteProgress(ctx, batch.CourseID, studentID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check prerequisites")
		}
		for _, p := range progress {
			if !p.Completed {
				result.Missing = append(result.Missing, p.Code)
			}
		}
		if len(result.Missing) > 0 {
			msg := fmt.Sprintf(msgPrerequisitesMiss, strings.Join(result.Missing, ", "))
			if batch.PrerequisiteEnforcement == models.PrerequisiteStrict {
				return reject(msg)
			}
			result.Warnings = append(result.Warnings, msg)
		}
	}

	if batch.ScheduleConflictChecking != models.ConflictNone {
		target, err := r.ListBatchSchedules(ctx, batch.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load batch schedule")
		}
		if len(target) > 0 {
			heldSlots, err := r.ListHeldSchedules(ctx, studentID, batch.ID)
			if err != nil {
				return nil, appErrors.Internal(err, "failed to load student schedule")
			}
			result.Conflicts = FindScheduleConflicts(target, heldSlots)
		}
		if len(result.Conflicts) > 0 {
			if batch.ScheduleConflictChecking == models.ConflictStrict {
				return reject(fmt.Sprintf(msgScheduleConflict, result.Conflicts[0].Description))
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf(msgConflictsDetected, len(result.Conflicts)))
		}
	}

	result.Eligible = true
	return result, nil
}

// FindScheduleConflicts pairs every requested slot with every held slot on the same
// day whose half-open time range intersects it.
func FindScheduleConflicts(requested []models.Schedule, held []models.HeldSchedule) []models.ScheduleConflict {
	var conflicts []models.ScheduleConflict
	for _, want := range requested {
		for _, have := range held {
			if !want.Overlaps(have.Schedule) {
				continue
			}
			conflicts = append(conflicts, models.ScheduleConflict{
				DayOfWeek:           want.DayOfWeek,
				RequestedStart:      want.StartTime,
				RequestedEnd:        want.EndTime,
				ExistingBatchID:     have.BatchID,
				ExistingCourseCode:  have.CourseCode,
				ExistingBatchNumber: have.BatchNumber,
				ExistingStart:       have.StartTime,
				ExistingEnd:         have.EndTime,
				Description: fmt.Sprintf("%s overlaps with %s Batch %d (%s)",
					want.Span(), have.CourseCode, have.BatchNumber, have.Span()),
			})
		}
	}
	return conflicts
}
