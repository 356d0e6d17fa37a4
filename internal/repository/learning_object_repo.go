package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/noah-isme/astra-go-api/internal/models"
)

// LearningObjectRepository defines data operations for exercises and chapters.
type LearningObjectRepository interface {
	GetByID(ctx context.Context, id uint) (models.LearningObject, error)
	ListByRound(ctx context.Context, roundID uint) ([]models.LearningObject, error)
	ListChildren(ctx context.Context, parentID uint) ([]models.LearningObject, error)
	// ListGradedExercisesByRound returns the round's non-hidden exercises in
	// non-hidden categories, the set whose best grades feed the gradebook.
	ListGradedExercisesByRound(ctx context.Context, roundID uint) ([]models.LearningObject, error)
	// FindChapterByKeys resolves a chapter by round and chapter remote keys
	// within a course.
	FindChapterByKeys(ctx context.Context, courseID uint, roundKey, chapterKey string) (models.LearningObject, error)
	// FindChapterInRound resolves a chapter by remote key within one round.
	FindChapterInRound(ctx context.Context, roundID uint, chapterKey string) (models.LearningObject, error)
	Create(ctx context.Context, object *models.LearningObject) error
	Update(ctx context.Context, object *models.LearningObject) error
}

type learningObjectRepository struct {
	db *gorm.DB
}

// NewLearningObjectRepository instantiates the repository.
func NewLearningObjectRepository(db *gorm.DB) LearningObjectRepository {
	return &learningObjectRepository{db: db}
}

func (r *learningObjectRepository) GetByID(ctx context.Context, id uint) (models.LearningObject, error) {
	var object models.LearningObject
	if err := r.db.WithContext(ctx).First(&object, id).Error; err != nil {
		return models.LearningObject{}, err
	}

	return object, nil
}

func (r *learningObjectRepository) ListByRound(ctx context.Context, roundID uint) ([]models.LearningObject, error) {
	var objects []models.LearningObject
	if err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("order_num ASC").
		Find(&objects).Error; err != nil {
		return nil, err
	}

	return SortObjectTree(objects), nil
}

func (r *learningObjectRepository) ListChildren(ctx context.Context, parentID uint) ([]models.LearningObject, error) {
	var objects []models.LearningObject
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("order_num ASC").
		Find(&objects).Error; err != nil {
		return nil, err
	}

	return objects, nil
}

func (r *learningObjectRepository) ListGradedExercisesByRound(ctx context.Context, roundID uint) ([]models.LearningObject, error) {
	var objects []models.LearningObject
	if err := r.db.WithContext(ctx).
		Joins("JOIN categories ON categories.id = learning_objects.category_id").
		Where("learning_objects.round_id = ?", roundID).
		Where("learning_objects.kind = ?", models.ObjectKindExercise).
		Where("learning_objects.status <> ?", models.ObjectStatusHidden).
		Where("categories.status <> ?", models.ObjectStatusHidden).
		Order("learning_objects.order_num ASC").
		Find(&objects).Error; err != nil {
		return nil, err
	}

	return objects, nil
}

func (r *learningObjectRepository) FindChapterByKeys(ctx context.Context, courseID uint, roundKey, chapterKey string) (models.LearningObject, error) {
	var object models.LearningObject
	if err := r.db.WithContext(ctx).
		Joins("JOIN rounds ON rounds.id = learning_objects.round_id").
		Where("rounds.course_id = ?", courseID).
		Where("rounds.remote_key = ?", roundKey).
		Where("learning_objects.kind = ?", models.ObjectKindChapter).
		Where("learning_objects.remote_key = ?", chapterKey).
		First(&object).Error; err != nil {
		return models.LearningObject{}, err
	}

	return object, nil
}

func (r *learningObjectRepository) FindChapterInRound(ctx context.Context, roundID uint, chapterKey string) (models.LearningObject, error) {
	var object models.LearningObject
	if err := r.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Where("kind = ?", models.ObjectKindChapter).
		Where("remote_key = ?", chapterKey).
		First(&object).Error; err != nil {
		return models.LearningObject{}, err
	}

	return object, nil
}

func (r *learningObjectRepository) Create(ctx context.Context, object *models.LearningObject) error {
	return r.db.WithContext(ctx).Create(object).Error
}

func (r *learningObjectRepository) Update(ctx context.Context, object *models.LearningObject) error {
	return r.db.WithContext(ctx).Save(object).Error
}

// ChildrenIndex maps a parent id to its ordered direct children. Root objects
// are indexed under key zero.
type ChildrenIndex map[uint][]models.LearningObject

// BuildChildrenIndex arranges a flat object list into a parent-to-children
// index, preserving order-number sorting within each parent.
func BuildChildrenIndex(objects []models.LearningObject) ChildrenIndex {
	index := make(ChildrenIndex)
	for _, object := range objects {
		parent := uint(0)
		if object.ParentID != nil {
			parent = *object.ParentID
		}
		index[parent] = append(index[parent], object)
	}

	for parent := range index {
		children := index[parent]
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].OrderNum < children[j].OrderNum
		})
		index[parent] = children
	}

	return index
}

// SortObjectTree orders objects parent-first: roots by order number, each
// followed by its subtree. Objects with no parent sort before any child.
func SortObjectTree(objects []models.LearningObject) []models.LearningObject {
	index := BuildChildrenIndex(objects)
	sorted := make([]models.LearningObject, 0, len(objects))

	var walk func(parent uint)
	walk = func(parent uint) {
		for _, child := range index[parent] {
			sorted = append(sorted, child)
			walk(child.ID)
		}
	}
	walk(0)

	// Objects whose parent is outside the listed set keep their original order
	// at the tail rather than being dropped.
	if len(sorted) < len(objects) {
		seen := make(map[uint]struct{}, len(sorted))
		for _, object := range sorted {
			seen[object.ID] = struct{}{}
		}
		for _, object := range objects {
			if _, ok := seen[object.ID]; !ok {
				sorted = append(sorted, object)
			}
		}
	}

	return sorted
}
