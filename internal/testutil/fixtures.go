package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"assetmanager/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a submitter with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithRole(t, db, email, models.RoleSubmitter)
}

// CreateTestApprover creates a user holding the approver role.
func CreateTestApprover(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("approver%d@test.com", nextID())
	return CreateTestUserWithRole(t, db, email, models.RoleApprover)
}

// CreateTestUserWithRole creates a user with the given email and role.
// The password is always "password123".
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     "Test User",
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestAsset inserts an asset row with the next dense id and no readings.
func CreateTestAsset(t *testing.T, db *gorm.DB, name string, value int64) *models.Asset {
	t.Helper()

	var count int64
	if err := db.Model(&models.Asset{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count assets: %v", err)
	}

	asset := &models.Asset{
		ID:     uint64(count),
		Name:   name,
		Handle: fmt.Sprintf("asset-%d", nextID()),
		Value:  value,
		Exists: true,
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestDataPoint appends a reading to an asset at the given position.
func CreateTestDataPoint(t *testing.T, db *gorm.DB, assetID uint64, index int, name string, value int64, resolution models.Resolution) *models.DataPoint {
	t.Helper()

	dp := &models.DataPoint{
		AssetID:       assetID,
		Index:         index,
		Name:          name,
		Value:         value,
		Baseline:      value,
		Timestamp:     time.Now().UTC(),
		NeedsApproval: resolution == models.ResolutionPending,
		Resolution:    resolution,
	}
	if err := db.Create(dp).Error; err != nil {
		t.Fatalf("failed to create test data point: %v", err)
	}
	return dp
}
