package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a registered person receiving care.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Mobile    string    `db:"mobile" json:"mobile"`
	Age       int       `db:"age" json:"age"`
	Language  string    `db:"language" json:"language,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
