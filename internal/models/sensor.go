package models

import (
	"database/sql"
	"time"
)

// SensorReading is one row of a hive_* sensor table.
type SensorReading struct {
	Record    sql.NullString `db:"record"`
	CreatedAt time.Time      `db:"created_at"`
}

type SensorQuery struct {
	Table  string    `validate:"required"`
	HiveID int       `validate:"gt=0"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtefield=From"`
}
