package testutil

import (
	"errors"
	"testing"

	apperrors "assetmanager/internal/errors"
	"assetmanager/internal/models"
)

// AssertAppError checks that err is an *AppError with the expected error code.
func AssertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected AppError with code %q, got nil", expectedCode)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %T: %v", err, err)
	}

	if appErr.Code != expectedCode {
		t.Errorf("expected error code %q, got %q (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDataPointState checks a reading's approval flag and resolution together,
// since the two must always agree.
func AssertDataPointState(t *testing.T, dp *models.DataPoint, needsApproval bool, resolution models.Resolution) {
	t.Helper()

	if dp == nil {
		t.Fatalf("expected data point in state %s, got nil", resolution)
	}
	if dp.NeedsApproval != needsApproval || dp.Resolution != resolution {
		t.Errorf("data point %d/%d: needs_approval=%v resolution=%s, want needs_approval=%v resolution=%s",
			dp.AssetID, dp.Index, dp.NeedsApproval, dp.Resolution, needsApproval, resolution)
	}
	if dp.IsPending() != (resolution == models.ResolutionPending) {
		t.Errorf("data point %d/%d: IsPending()=%v inconsistent with resolution %s", dp.AssetID, dp.Index, dp.IsPending(), resolution)
	}
}
