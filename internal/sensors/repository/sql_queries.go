package repository

// The table name cannot be a bind parameter; it is checked against sensorTablePattern first.
const getReadingsQueryTemplate = `SELECT record, created_at FROM %s
					WHERE created_at >= $1 AND created_at <= $2 AND hive_id = $3
					ORDER BY created_at ASC`
