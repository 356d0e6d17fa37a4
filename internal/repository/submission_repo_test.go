package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
)

var testDBCounter atomic.Int64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Round{},
		&models.Category{},
		&models.LearningObject{},
		&models.Submission{},
		&models.SubmittedFile{},
		&models.DeadlineDeviation{},
		&models.SubmissionLimitDeviation{},
	))
	return db
}

func TestSubmissionRepositoryGetBestOrdersByGradeThenTime(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlierBest := models.Submission{ExerciseID: 1, Submitter: 7, Status: models.SubmissionStatusReady, Grade: 80, Hash: "a1", SubmissionTime: base}
	laterSameGrade := models.Submission{ExerciseID: 1, Submitter: 7, Status: models.SubmissionStatusReady, Grade: 80, Hash: "a2", SubmissionTime: base.Add(time.Hour)}
	lowerGrade := models.Submission{ExerciseID: 1, Submitter: 7, Status: models.SubmissionStatusReady, Grade: 60, Hash: "a3", SubmissionTime: base.Add(2 * time.Hour)}
	require.NoError(t, repo.Create(ctx, &earlierBest))
	require.NoError(t, repo.Create(ctx, &laterSameGrade))
	require.NoError(t, repo.Create(ctx, &lowerGrade))

	best, err := repo.GetBest(ctx, 1, 7)
	require.NoError(t, err)
	require.Equal(t, earlierBest.ID, best.ID, "expected ties broken by earliest submission")
}

func TestSubmissionRepositoryGetBestIgnoresUngraded(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	waiting := models.Submission{ExerciseID: 2, Submitter: 3, Status: models.SubmissionStatusWaiting, Grade: 100, Hash: "b1", SubmissionTime: time.Now()}
	graded := models.Submission{ExerciseID: 2, Submitter: 3, Status: models.SubmissionStatusReady, Grade: 40, Hash: "b2", SubmissionTime: time.Now()}
	require.NoError(t, repo.Create(ctx, &waiting))
	require.NoError(t, repo.Create(ctx, &graded))

	best, err := repo.GetBest(ctx, 2, 3)
	require.NoError(t, err)
	require.Equal(t, graded.ID, best.ID)

	_, err = repo.GetBest(ctx, 2, 99)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryCountsAllStatuses(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	for i, status := range []string{models.SubmissionStatusReady, models.SubmissionStatusError, models.SubmissionStatusRejected} {
		submission := models.Submission{ExerciseID: 5, Submitter: 1, Status: status, Hash: fmt.Sprintf("c%d", i), SubmissionTime: time.Now()}
		require.NoError(t, repo.Create(ctx, &submission))
	}

	count, err := repo.CountByExerciseAndSubmitter(ctx, 5, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestSubmissionRepositoryGetByHashPreloadsFiles(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := models.Submission{ExerciseID: 1, Submitter: 1, Status: models.SubmissionStatusInitialized, Hash: "d1", SubmissionTime: time.Now()}
	require.NoError(t, repo.Create(ctx, &submission))
	require.NoError(t, repo.CreateFile(ctx, &models.SubmittedFile{SubmissionID: submission.ID, FileName: "main.py", FileURL: "https://files.example/main.py", MIMEType: "text/x-python"}))

	loaded, err := repo.GetByHash(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, loaded.Files, 1)
	require.Equal(t, "main.py", loaded.Files[0].FileName)

	_, err = repo.GetByHash(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
