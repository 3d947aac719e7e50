package models

import (
	"github.com/google/uuid"
)

// CustomerModel is the customer read model. Customers are maintained elsewhere;
// this service only filters and groups by them.
type CustomerModel struct {
	BaseModel
	Code          string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name          string     `gorm:"type:varchar(200);not null;index"`
	Mobile        string     `gorm:"type:varchar(50);index"`
	CustomerGroup string     `gorm:"type:varchar(200)"`
	ActivityTag   string     `gorm:"type:varchar(100);index"`
	OwnerUserID   *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}
