package enums

// OrderSource records which application created an order.
type OrderSource string

const (
	OrderSourceCheckout  OrderSource = "checkout"
	OrderSourceOrganizer OrderSource = "organizer"
)

var validOrderSources = []OrderSource{
	OrderSourceCheckout,
	OrderSourceOrganizer,
}

func (s OrderSource) IsValid() bool {
	return known(s, validOrderSources)
}
