package dialect

// Pattern is a recognized value shape checked on text columns.
type Pattern struct {
	Name string
	// Expr avoids backslash escapes and shorthand classes so POSIX, RE2,
	// Java-style and SIMILAR TO engines all accept the same text.
	Expr string
}

const (
	PatternEmail   = "email"
	PatternPhone   = "phone"
	PatternNumeric = "numeric"
	PatternISODate = "iso_date"
)

// Patterns is the fixed set of recognized patterns, in reporting order.
var Patterns = []Pattern{
	{Name: PatternEmail, Expr: `^[^@ ]+@[^@ ]+[.][^@ ]+$`},
	{Name: PatternPhone, Expr: `^[+]?[0-9][-0-9 ()]{6,}$`},
	{Name: PatternNumeric, Expr: `^[-]?[0-9]+([.][0-9]+)?$`},
	{Name: PatternISODate, Expr: `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`},
}

// PatternByName returns the recognized pattern with the given name.
func PatternByName(name string) (Pattern, bool) {
	for _, p := range Patterns {
		if p.Name == name {
			return p, true
		}
	}
	return Pattern{}, false
}
