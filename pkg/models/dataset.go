package models

type Customer struct {
	ID                  string  `json:"id"`                  // Stable slug
	Name                string  `json:"name"`
	Phone               string  `json:"phone"`
	CompanyName         string  `json:"companyName"`
	TotalPurchaseAmount float64 `json:"totalPurchaseAmount"` // Sum of this customer's invoice totals
	Missing             bool    `json:"missing"`
}

type Product struct {
	ID        string   `json:"id"` // Stable slug
	Name      string   `json:"name"`
	Brand     string   `json:"brand"`
	Quantity  *float64 `json:"quantity"`  // Cumulative stock, nil when never stated
	UnitPrice *float64 `json:"unitPrice"` // nil when never stated
	Tax       float64  `json:"tax"`       // Percent
	Discount  float64  `json:"discount"`  // Percent
	Missing   bool     `json:"missing"`
}

// Price returns the unit price or zero when it is unknown.
func (p Product) Price() float64 {
	if p.UnitPrice == nil {
		return 0
	}
	return *p.UnitPrice
}

// Dataset is the single persisted document per user.
type Dataset struct {
	Invoices  []Invoice           `json:"invoices"`
	Products  map[string]Product  `json:"products"`
	Customers map[string]Customer `json:"customers"`
}

// NewDataset returns the empty dataset used for new users and resets.
func NewDataset() Dataset {
	return Dataset{
		Invoices:  []Invoice{},
		Products:  map[string]Product{},
		Customers: map[string]Customer{},
	}
}

// Clone returns a deep copy that shares no mutable state with d.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Invoices:  make([]Invoice, len(d.Invoices)),
		Products:  make(map[string]Product, len(d.Products)),
		Customers: make(map[string]Customer, len(d.Customers)),
	}
	for i, inv := range d.Invoices {
		inv.LineItems = append([]LineItem(nil), inv.LineItems...)
		if inv.LineItems == nil {
			inv.LineItems = []LineItem{}
		}
		inv.AmountPending = cloneFloat(inv.AmountPending)
		out.Invoices[i] = inv
	}
	for id, p := range d.Products {
		p.Quantity = cloneFloat(p.Quantity)
		p.UnitPrice = cloneFloat(p.UnitPrice)
		out.Products[id] = p
	}
	for id, c := range d.Customers {
		out.Customers[id] = c
	}
	return out
}

// Normalize replaces nil collections with empty ones, so a document decoded
// from storage behaves like NewDataset.
func (d *Dataset) Normalize() {
	if d.Invoices == nil {
		d.Invoices = []Invoice{}
	}
	if d.Products == nil {
		d.Products = map[string]Product{}
	}
	if d.Customers == nil {
		d.Customers = map[string]Customer{}
	}
	for i := range d.Invoices {
		if d.Invoices[i].LineItems == nil {
			d.Invoices[i].LineItems = []LineItem{}
		}
	}
}

// InvoiceBySerial returns the index of the invoice with the given serial number, or -1.
func (d Dataset) InvoiceBySerial(serial string) int {
	for i, inv := range d.Invoices {
		if inv.SerialNumber == serial {
			return i
		}
	}
	return -1
}

// InvoiceByID returns the index of the invoice with the given id, or -1.
func (d Dataset) InvoiceByID(id string) int {
	for i, inv := range d.Invoices {
		if inv.ID == id {
			return i
		}
	}
	return -1
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
