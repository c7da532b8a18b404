package model

import "time"

// Catalog records are flat: server-assigned ids, replaced wholesale on save,
// never partially merged.

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

type Company struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	CategoryID string    `json:"category_id"`
	About      string    `json:"about"`
	LogoURL    string    `json:"logo_url"`
	Location   string    `json:"location"`
	Website    string    `json:"website"`
	CreatedAt  time.Time `json:"created_at"`
}

type Product struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendor_id"`
	CategoryID  string    `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	ImageURL    string    `json:"image_url"`
	InStock     bool      `json:"in_stock"`
	CreatedAt   time.Time `json:"created_at"`
}

type Service struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendor_id"`
	CategoryID  string    `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type Booking struct {
	ID          string        `json:"id"`
	ServiceID   string        `json:"service_id"`
	BuyerID     string        `json:"buyer_id"`
	Status      BookingStatus `json:"status"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Note        string        `json:"note"`
	CreatedAt   time.Time     `json:"created_at"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID         string      `json:"id"`
	ProductID  string      `json:"product_id"`
	BuyerID    string      `json:"buyer_id"`
	Quantity   int         `json:"quantity"`
	TotalCents int64       `json:"total_cents"`
	Currency   string      `json:"currency"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}
