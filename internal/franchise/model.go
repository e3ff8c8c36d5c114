package franchise

// Franchise is a pizza franchise with its stores and administrators.
type Franchise struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Admins []Admin `json:"admins,omitempty"`
	Stores []Store `json:"stores"`
}

// Admin is a user holding the franchisee role for a franchise.
type Admin struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Store is a physical location belonging to a franchise.
type Store struct {
	ID           int64   `json:"id"`
	FranchiseID  int64   `json:"franchiseId,omitempty"`
	Name         string  `json:"name"`
	TotalRevenue float64 `json:"totalRevenue,omitempty"`
}

// ListFilter narrows franchise listings.
type ListFilter struct {
	Page       int
	Limit      int
	Name       string
	WithAdmins bool // load the franchisee users of each franchise
}

// DefaultPageSize is used when the caller does not ask for a limit.
const DefaultPageSize = 10

func (f ListFilter) normalize() ListFilter {
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = DefaultPageSize
	}
	if f.Name == "" {
		f.Name = "*"
	}
	return f
}
