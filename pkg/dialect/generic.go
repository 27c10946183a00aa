package dialect

func init() {
	Register(genericDialect{})
}

// genericDialect is plain ANSI SQL, the explicit fallback for engines without a
// dedicated variant.
type genericDialect struct{ ansi }

func (genericDialect) ID() ID { return Generic }
