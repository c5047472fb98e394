package models

// Admin is the identity carried in the admin session.
type Admin struct {
	GoogleID string `json:"google_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageSrc string `json:"image"`
}
