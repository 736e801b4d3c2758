package entity

type Item struct {
	ID    int64  `json:"id"`
	Name  string `json:"name" validate:"required"`
	Price int64  `json:"price" validate:"gte=0"`
	Stock *int   `json:"stock,omitempty" validate:"omitempty,gte=0"` // nil means stock is not tracked
}
