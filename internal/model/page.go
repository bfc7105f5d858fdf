package model

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

// Page is an offset/limit window over a listing
type Page struct {
	Offset int
	Limit  int
}

// NewPage clamps offset to >= 0 and limit to 1..MaxPageLimit; zero or
// negative limits fall back to DefaultPageLimit.
func NewPage(offset, limit int) Page {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Offset: offset, Limit: limit}
}
