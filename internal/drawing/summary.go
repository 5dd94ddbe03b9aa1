package drawing

// Summary is a drawing's metadata without the scene document.
// Used by list operations to keep results small.
type Summary struct {
	ID         string  `json:"id"`
	Name       *string `json:"name,omitempty"`
	SessionID  string  `json:"session_id"`
	Task       string  `json:"task"`
	Condition  string  `json:"condition"`
	ShapeCount int     `json:"shape_count"`
	Rating     *int    `json:"rating,omitempty"`
	CreatedAt  int64   `json:"created_at"`
	UpdatedAt  int64   `json:"updated_at"`
	DeletedAt  *int64  `json:"deleted_at,omitempty"`
}

// ToSummary strips the scene document.
func (d *Drawing) ToSummary() Summary {
	return Summary{
		ID:         d.ID,
		Name:       d.Name,
		SessionID:  d.SessionID,
		Task:       d.Task,
		Condition:  d.Condition,
		ShapeCount: d.ShapeCount,
		Rating:     d.Rating,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		DeletedAt:  d.DeletedAt,
	}
}
