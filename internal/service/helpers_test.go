package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeObjectRepo struct {
	mu               sync.Mutex
	nextID           uint
	objects          map[uint]models.LearningObject
	hiddenCategories map[uint]bool
}

func newFakeObjectRepo() *fakeObjectRepo {
	return &fakeObjectRepo{
		objects:          make(map[uint]models.LearningObject),
		hiddenCategories: make(map[uint]bool),
	}
}

func (r *fakeObjectRepo) GetByID(_ context.Context, id uint) (models.LearningObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	object, ok := r.objects[id]
	if !ok {
		return models.LearningObject{}, gorm.ErrRecordNotFound
	}
	return object, nil
}

func (r *fakeObjectRepo) ListByRound(_ context.Context, roundID uint) ([]models.LearningObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var objects []models.LearningObject
	for _, object := range r.objects {
		if object.RoundID == roundID {
			objects = append(objects, object)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].OrderNum < objects[j].OrderNum })
	return repository.SortObjectTree(objects), nil
}

func (r *fakeObjectRepo) ListChildren(_ context.Context, parentID uint) ([]models.LearningObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var children []models.LearningObject
	for _, object := range r.objects {
		if object.ParentID != nil && *object.ParentID == parentID {
			children = append(children, object)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].OrderNum < children[j].OrderNum })
	return children, nil
}

func (r *fakeObjectRepo) ListGradedExercisesByRound(_ context.Context, roundID uint) ([]models.LearningObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var exercises []models.LearningObject
	for _, object := range r.objects {
		if object.RoundID != roundID || object.Kind != models.ObjectKindExercise {
			continue
		}
		if object.Status == models.ObjectStatusHidden || r.hiddenCategories[object.CategoryID] {
			continue
		}
		exercises = append(exercises, object)
	}
	sort.Slice(exercises, func(i, j int) bool { return exercises[i].OrderNum < exercises[j].OrderNum })
	return exercises, nil
}

func (r *fakeObjectRepo) FindChapterByKeys(_ context.Context, courseID uint, roundKey, chapterKey string) (models.LearningObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, object := range r.objects {
		if object.Kind == models.ObjectKindChapter && object.RemoteKey == chapterKey {
			return object, nil
		}
	}
	return models.LearningObject{}, gorm.ErrRecordNotFound
}

func (r *fakeObjectRepo) FindChapterInRound(_ context.Context, roundID uint, chapterKey string) (models.LearningObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, object := range r.objects {
		if object.Kind == models.ObjectKindChapter && object.RoundID == roundID && object.RemoteKey == chapterKey {
			return object, nil
		}
	}
	return models.LearningObject{}, gorm.ErrRecordNotFound
}

func (r *fakeObjectRepo) Create(_ context.Context, object *models.LearningObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if object.ID == 0 {
		r.nextID++
		object.ID = r.nextID
	} else if object.ID > r.nextID {
		r.nextID = object.ID
	}
	r.objects[object.ID] = *object
	return nil
}

func (r *fakeObjectRepo) Update(_ context.Context, object *models.LearningObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[object.ID] = *object
	return nil
}

type fakeRoundRepo struct {
	mu     sync.Mutex
	rounds map[uint]models.Round
}

func newFakeRoundRepo() *fakeRoundRepo {
	return &fakeRoundRepo{rounds: make(map[uint]models.Round)}
}

func (r *fakeRoundRepo) GetByID(_ context.Context, id uint) (models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[id]
	if !ok {
		return models.Round{}, gorm.ErrRecordNotFound
	}
	return round, nil
}

func (r *fakeRoundRepo) GetByRemoteKey(_ context.Context, courseID uint, remoteKey string) (models.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, round := range r.rounds {
		if round.CourseID == courseID && round.RemoteKey == remoteKey {
			return round, nil
		}
	}
	return models.Round{}, gorm.ErrRecordNotFound
}

func (r *fakeRoundRepo) Create(_ context.Context, round *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if round.ID == 0 {
		round.ID = uint(len(r.rounds) + 1)
	}
	r.rounds[round.ID] = *round
	return nil
}

func (r *fakeRoundRepo) Update(_ context.Context, round *models.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds[round.ID] = *round
	return nil
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	nextID      uint
	submissions map[uint]models.Submission
	files       []models.SubmittedFile
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: make(map[uint]models.Submission)}
}

func (r *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	submission, ok := r.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (r *fakeSubmissionRepo) GetByHash(_ context.Context, hash string) (models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, submission := range r.submissions {
		if submission.Hash == hash {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (r *fakeSubmissionRepo) CountByExerciseAndSubmitter(_ context.Context, exerciseID, submitter uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, submission := range r.submissions {
		if submission.ExerciseID == exerciseID && submission.Submitter == submitter {
			count++
		}
	}
	return count, nil
}

func (r *fakeSubmissionRepo) GetBest(_ context.Context, exerciseID, submitter uint) (models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.Submission
	for _, submission := range r.submissions {
		if submission.ExerciseID != exerciseID || submission.Submitter != submitter || submission.Status != models.SubmissionStatusReady {
			continue
		}
		current := submission
		if best == nil ||
			current.Grade > best.Grade ||
			(current.Grade == best.Grade && current.SubmissionTime.Before(best.SubmissionTime)) {
			best = &current
		}
	}
	if best == nil {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return *best, nil
}

func (r *fakeSubmissionRepo) ListByExerciseAndSubmitter(_ context.Context, exerciseID, submitter uint) ([]models.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var submissions []models.Submission
	for _, submission := range r.submissions {
		if submission.ExerciseID == exerciseID && submission.Submitter == submitter {
			submissions = append(submissions, submission)
		}
	}
	sort.Slice(submissions, func(i, j int) bool {
		return submissions[i].SubmissionTime.After(submissions[j].SubmissionTime)
	})
	return submissions, nil
}

func (r *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	submission.ID = r.nextID
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *fakeSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions[submission.ID] = *submission
	return nil
}

func (r *fakeSubmissionRepo) CreateFile(_ context.Context, file *models.SubmittedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	file.ID = uint(len(r.files) + 1)
	r.files = append(r.files, *file)
	return nil
}

type deviationKey struct {
	exerciseID uint
	submitter  uint
}

type fakeDeviationRepo struct {
	mu         sync.Mutex
	deadlines  map[deviationKey]models.DeadlineDeviation
	submitCaps map[deviationKey]models.SubmissionLimitDeviation
	nextID     uint
}

func newFakeDeviationRepo() *fakeDeviationRepo {
	return &fakeDeviationRepo{
		deadlines:  make(map[deviationKey]models.DeadlineDeviation),
		submitCaps: make(map[deviationKey]models.SubmissionLimitDeviation),
	}
}

func (r *fakeDeviationRepo) GetDeadlineDeviation(_ context.Context, exerciseID, submitter uint) (models.DeadlineDeviation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deviation, ok := r.deadlines[deviationKey{exerciseID, submitter}]
	if !ok {
		return models.DeadlineDeviation{}, gorm.ErrRecordNotFound
	}
	return deviation, nil
}

func (r *fakeDeviationRepo) GetSubmissionLimitDeviation(_ context.Context, exerciseID, submitter uint) (models.SubmissionLimitDeviation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deviation, ok := r.submitCaps[deviationKey{exerciseID, submitter}]
	if !ok {
		return models.SubmissionLimitDeviation{}, gorm.ErrRecordNotFound
	}
	return deviation, nil
}

func (r *fakeDeviationRepo) CreateDeadlineDeviation(_ context.Context, deviation *models.DeadlineDeviation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	deviation.ID = r.nextID
	deviation.CreatedAt = time.Now()
	r.deadlines[deviationKey{deviation.ExerciseID, deviation.Submitter}] = *deviation
	return nil
}

func (r *fakeDeviationRepo) CreateSubmissionLimitDeviation(_ context.Context, deviation *models.SubmissionLimitDeviation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	deviation.ID = r.nextID
	deviation.CreatedAt = time.Now()
	r.submitCaps[deviationKey{deviation.ExerciseID, deviation.Submitter}] = *deviation
	return nil
}

func (r *fakeDeviationRepo) ListDeadlineDeviations(_ context.Context, exerciseID uint) ([]models.DeadlineDeviation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deviations []models.DeadlineDeviation
	for key, deviation := range r.deadlines {
		if key.exerciseID == exerciseID {
			deviations = append(deviations, deviation)
		}
	}
	sort.Slice(deviations, func(i, j int) bool { return deviations[i].Submitter < deviations[j].Submitter })
	return deviations, nil
}

func (r *fakeDeviationRepo) ListSubmissionLimitDeviations(_ context.Context, exerciseID uint) ([]models.SubmissionLimitDeviation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deviations []models.SubmissionLimitDeviation
	for key, deviation := range r.submitCaps {
		if key.exerciseID == exerciseID {
			deviations = append(deviations, deviation)
		}
	}
	sort.Slice(deviations, func(i, j int) bool { return deviations[i].Submitter < deviations[j].Submitter })
	return deviations, nil
}

type fakeGradebook struct {
	mu     sync.Mutex
	writes []gradebookWrite
}

type gradebookWrite struct {
	RoundID   uint
	StudentID uint
	Grade     int
}

func (g *fakeGradebook) WriteGrade(_ context.Context, roundID, studentID uint, grade int, _ time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes = append(g.writes, gradebookWrite{RoundID: roundID, StudentID: studentID, Grade: grade})
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []interface{}
}

func (p *fakePublisher) Publish(subject string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, payload)
	return nil
}
