package model

// Specialty is a medical specialty offered by the clinic.
type Specialty struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Doctor is a practitioner belonging to one specialty.
type Doctor struct {
	ID           int64   `json:"id"`
	SpecialtyID  int64   `json:"specialty_id"`
	Name         string  `json:"name"`
	Title        string  `json:"title,omitempty"`
	Rating       float64 `json:"rating"`
	ReviewsCount int     `json:"reviews_count"`
	Bio          string  `json:"bio,omitempty"`
	Image        string  `json:"image,omitempty"`
}
