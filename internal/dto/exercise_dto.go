package dto

import (
	"time"

	"github.com/noah-isme/astra-go-api/internal/models"
	"github.com/noah-isme/astra-go-api/internal/service"
)

// ExerciseResponse summarizes a learning object without its remote content.
type ExerciseResponse struct {
	ID             uint      `json:"id"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	RoundID        uint      `json:"round_id"`
	CategoryID     uint      `json:"category_id"`
	ParentID       *uint     `json:"parent_id"`
	OrderNum       int       `json:"order_num"`
	Name           string    `json:"name"`
	MaxSubmissions int       `json:"max_submissions"`
	MaxPoints      int       `json:"max_points"`
	PointsToPass   int       `json:"points_to_pass"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AliasScriptResponse serializes a script lifted off the remote page together
// with the alias its code expects.
type AliasScriptResponse struct {
	Code  string `json:"code"`
	Alias string `json:"alias"`
}

// ExercisePageResponse carries the extracted remote page for rendering.
type ExercisePageResponse struct {
	Exercise        ExerciseResponse      `json:"exercise"`
	Content         string                `json:"content"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	InjectedCSSURLs []string              `json:"injected_css_urls"`
	InjectedJSURLs  []string              `json:"injected_js_urls"`
	InjectedJSCode  []string              `json:"injected_js_code"`
	AliasScripts    []AliasScriptResponse `json:"alias_scripts"`
	Expires         time.Time             `json:"expires"`
}

// NewExerciseResponse converts a LearningObject model into a DTO.
func NewExerciseResponse(model models.LearningObject) ExerciseResponse {
	return ExerciseResponse{
		ID:             model.ID,
		Kind:           string(model.Kind),
		Status:         model.Status,
		RoundID:        model.RoundID,
		CategoryID:     model.CategoryID,
		ParentID:       model.ParentID,
		OrderNum:       model.OrderNum,
		Name:           model.Name,
		MaxSubmissions: model.MaxSubmissions,
		MaxPoints:      model.MaxPoints,
		PointsToPass:   model.PointsToPass,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

// NewExerciseResponseSlice converts learning object models into DTOs.
func NewExerciseResponseSlice(objects []models.LearningObject) []ExerciseResponse {
	responses := make([]ExerciseResponse, 0, len(objects))
	for _, object := range objects {
		responses = append(responses, NewExerciseResponse(object))
	}

	return responses
}

// NewExercisePageResponse combines a learning object and its extracted page.
func NewExercisePageResponse(object models.LearningObject, page *service.ExercisePage) ExercisePageResponse {
	response := ExercisePageResponse{
		Exercise:        NewExerciseResponse(object),
		Content:         page.Content,
		Title:           page.Title,
		Description:     page.Description,
		InjectedCSSURLs: page.InjectedCSSURLs,
		InjectedJSURLs:  page.InjectedJSURLs,
		InjectedJSCode:  page.InjectedJSCode,
		Expires:         page.Expires,
	}

	for _, script := range page.AliasScripts {
		response.AliasScripts = append(response.AliasScripts, AliasScriptResponse{
			Code:  script.Code,
			Alias: script.Alias,
		})
	}

	return response
}
