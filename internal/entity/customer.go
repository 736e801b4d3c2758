package entity

type Customer struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Credential  string `json:"-"` // bcrypt hash
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	APIKey      string `json:"api_key,omitempty"`
}

// RegisterRequest is the payload accepted when a customer signs up.
type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=50"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
}
