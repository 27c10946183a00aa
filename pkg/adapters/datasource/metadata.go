package datasource

import "strings"

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	ColumnName      string `db:"column_name"`
	DataType        string `db:"data_type"`
	IsNullable      bool   `db:"is_nullable"`
	OrdinalPosition int    `db:"ordinal_position"`
}

// SplitTableName splits "schema.table" into its parts. A name without a dot
// has an empty schema. Only the last dot separates the table, so
// "project.dataset.table" yields schema "project.dataset".
func SplitTableName(name string) (schemaName, tableName string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}
