package services

import (
	"fmt"
	"sort"

	"github.com/ekaya-inc/ekaya-quality/pkg/models"
)

// DetectSchemaShifts compares the columns of two profiles of the same table.
// Shifts are ordered removed, added, then type_changed, each alphabetically
// by column. A type change is a change of inferred kind; a different type
// name within the same kind (varchar(50) to varchar(100)) is not a shift.
func DetectSchemaShifts(previous, current *models.TableProfile) []models.SchemaShift {
	shifts := []models.SchemaShift{}
	if previous == nil || current == nil {
		return shifts
	}

	prevCols := columnsByName(previous)
	currCols := columnsByName(current)

	var removed, added, changed []string
	for name, prev := range prevCols {
		curr, ok := currCols[name]
		switch {
		case !ok:
			removed = append(removed, name)
		case prev.Kind != curr.Kind:
			changed = append(changed, name)
		}
	}
	for name := range currCols {
		if _, ok := prevCols[name]; !ok {
			added = append(added, name)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	sort.Strings(changed)

	for _, name := range removed {
		prev := prevCols[name]
		shifts = append(shifts, models.SchemaShift{
			Column:       name,
			Kind:         models.ShiftRemoved,
			Description:  fmt.Sprintf("Column %s (%s) was removed", name, prev.DataType),
			PreviousType: prev.DataType,
		})
	}
	for _, name := range added {
		curr := currCols[name]
		shifts = append(shifts, models.SchemaShift{
			Column:      name,
			Kind:        models.ShiftAdded,
			Description: fmt.Sprintf("Column %s (%s) was added", name, curr.DataType),
			CurrentType: curr.DataType,
		})
	}
	for _, name := range changed {
		prev, curr := prevCols[name], currCols[name]
		shifts = append(shifts, models.SchemaShift{
			Column: name,
			Kind:   models.ShiftTypeChanged,
			Description: fmt.Sprintf("Column %s changed type from %s (%s) to %s (%s)",
				name, prev.DataType, prev.Kind, curr.DataType, curr.Kind),
			PreviousType: prev.DataType,
			CurrentType:  curr.DataType,
		})
	}
	return shifts
}

func columnsByName(p *models.TableProfile) map[string]models.ColumnProfile {
	out := make(map[string]models.ColumnProfile, len(p.Columns))
	for _, c := range p.Columns {
		out[c.Name] = c
	}
	return out
}
