// Package drawing describes a saved sketch and its experiment metadata.
package drawing

import (
	"fmt"
	"slices"

	"github.com/haiilab/sketchlab/internal/errors"
	"github.com/haiilab/sketchlab/internal/scene"
)

// Experimental conditions.
const (
	HumanOnly   = "H_ONLY"    // suggestions disabled
	HumanPlusAI = "H_PLUS_IA" // suggestions enabled
)

// Reference tasks. TaskFree has no reference drawing.
const (
	TaskCat    = "cat"
	TaskCastle = "castle"
	TaskCar    = "car"
	TaskFree   = "free"
)

// Tasks lists the valid task names.
var Tasks = []string{TaskCat, TaskCastle, TaskCar, TaskFree}

// Rating bounds for the subject's self-rated similarity.
const (
	MinRating = 1
	MaxRating = 5
)

// Drawing is a saved scene with the session context it was produced in.
type Drawing struct {
	// ID is a ULID
	ID string

	// Name is an optional label; NameNorm is its normalized form
	Name     *string
	NameNorm *string

	SessionID string
	Task      string
	Condition string

	// SceneJSON is the serialized scene document
	SceneJSON string

	// ShapeCount is derived from SceneJSON
	ShapeCount int

	// Rating is the self-rated similarity to the reference, 1..5
	Rating *int

	// Unix timestamps
	CreatedAt int64
	UpdatedAt int64
	DeletedAt *int64
}

// Scene decodes the stored scene document.
func (d *Drawing) Scene() (*scene.Scene, error) {
	return scene.Unmarshal([]byte(d.SceneJSON))
}

// SetScene serializes s into the drawing and refreshes derived fields.
func (d *Drawing) SetScene(s *scene.Scene) error {
	data, err := scene.Marshal(s)
	if err != nil {
		return errors.NewInternal(err)
	}
	d.SceneJSON = string(data)
	d.ShapeCount = s.Len()
	return nil
}

// ValidateTask checks a task name. Empty means free drawing.
func ValidateTask(task string) (string, error) {
	if task == "" {
		return TaskFree, nil
	}
	if !slices.Contains(Tasks, task) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("unknown task %q (want one of %v)", task, Tasks))
	}
	return task, nil
}

// ValidateCondition checks a condition name. Empty defaults to H_PLUS_IA.
func ValidateCondition(condition string) (string, error) {
	switch condition {
	case "":
		return HumanPlusAI, nil
	case HumanOnly, HumanPlusAI:
		return condition, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("unknown condition %q (want %s or %s)", condition, HumanOnly, HumanPlusAI))
}

// ValidateRating checks the similarity score.
func ValidateRating(score int) error {
	if score < MinRating || score > MaxRating {
		return errors.NewInvalidRequest(fmt.Sprintf("rating must be between %d and %d", MinRating, MaxRating))
	}
	return nil
}
