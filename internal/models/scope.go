package models

// Viewer roles.
const (
	RoleStudent      = "student"
	RolePsychologist = "psychologist"
	RoleAdmin        = "admin"
)

// ViewerScope narrows a booking list fetch to what the viewer may see.
// An empty field places no restriction.
type ViewerScope struct {
	Role        string `json:"role"`
	UserID      string `json:"user_id"`
	InstituteID string `json:"institute_id"`
}
