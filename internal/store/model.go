package store

import (
	"time"

	"gorm.io/datatypes"
)

// NamedVariable is one persisted host variable. The value is stored as JSON
// so numeric and string-valued variables share one column.
type NamedVariable struct {
	ID        uint           `gorm:"primarykey"`
	Name      string         `gorm:"uniqueIndex;not null"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time
}
