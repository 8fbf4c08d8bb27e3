package models

// All lists the tables owned by the backend, in dependency order. Used to
// build throwaway sqlite schemas; postgres schemas come from the backend.
func All() []any {
	return []any{
		&Product{},
		&Order{},
		&DailySale{},
		&UserProfile{},
		&AppSetting{},
	}
}
