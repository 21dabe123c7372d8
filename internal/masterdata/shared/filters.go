package shared

// ListFilters captures the common listing controls for master data.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}

// Offset computes the SQL offset for the current page.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}
