package order

import "time"

// MenuItem is a pizza on offer.
type MenuItem struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// Item is one line of an order. Price is taken from the menu at order time.
type Item struct {
	ID          int64   `json:"id,omitempty"`
	MenuID      int64   `json:"menuId"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// Order is a diner's purchase from one store.
type Order struct {
	ID          int64     `json:"id"`
	FranchiseID int64     `json:"franchiseId"`
	StoreID     int64     `json:"storeId"`
	Date        time.Time `json:"date"`
	Items       []Item    `json:"items"`
}

// Total sums the item prices.
func (o Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Price
	}
	return total
}

// NewOrder carries what a diner submits.
type NewOrder struct {
	FranchiseID int64
	StoreID     int64
	Items       []Item
}

// History is one page of a diner's orders.
type History struct {
	DinerID int64   `json:"dinerId"`
	Orders  []Order `json:"orders"`
	Page    int     `json:"page"`
}

// PageSize bounds order history pages.
const PageSize = 10
