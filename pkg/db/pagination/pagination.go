package pagination

import "gorm.io/gorm"

// Pagination is offset based paging shared by every list endpoint.
type Pagination struct {
	FromIndex int `form:"fromIndex" validate:"gte=0"`
	MaxItems  int `form:"maxItems" validate:"gte=0,lte=1000"`
}

// WithDefaults fills unset fields: FromIndex defaults to 0 and MaxItems to the
// configured default page size.
func (p Pagination) WithDefaults(defaultMaxItems int) Pagination {
	if p.FromIndex < 0 {
		p.FromIndex = 0
	}
	if p.MaxItems <= 0 {
		p.MaxItems = defaultMaxItems
	}
	return p
}

// Apply attaches the offset/limit clauses to the query.
func Apply(query *gorm.DB, p Pagination) *gorm.DB {
	if p.FromIndex > 0 {
		query = query.Offset(p.FromIndex)
	}
	if p.MaxItems > 0 {
		query = query.Limit(p.MaxItems)
	}
	return query
}
