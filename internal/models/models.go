package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID                 int64               `db:"id" json:"id"`
	Name               string              `db:"name" json:"name"`
	Description        string              `db:"description" json:"description"`
	Category           string              `db:"category" json:"category"`
	Price              int64               `db:"price" json:"price"`
	DiscountPercentage decimal.NullDecimal `db:"discount_percentage" json:"discount_percentage"`
	DiscountPrice      decimal.NullDecimal `db:"discount_price" json:"discount_price"`
	Color              string              `db:"color" json:"color"`
	Sizes              pq.StringArray      `db:"sizes" json:"sizes"`
	Stock              int                 `db:"stock" json:"stock"`
	Images             pq.StringArray      `db:"images" json:"images"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// HasSize reports whether the product is offered in the given size
func (p *Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Product categories
const (
	CategoryDropShoulder = "Drop Shoulder Tees"
	CategoryJerseys      = "Jerseys"
	CategoryHoodies      = "Hoodies"
	CategoryBasic        = "Basic Collection"
)

// Categories lists the closed set of catalog categories
var Categories = []string{CategoryDropShoulder, CategoryJerseys, CategoryHoodies, CategoryBasic}

// Product colors
const (
	ColorBlack = "Black"
	ColorWhite = "White"
	ColorNavy  = "Navy"
	ColorGrey  = "Grey"
	ColorOther = "Other"
)

// Colors lists the closed set of catalog colors
var Colors = []string{ColorBlack, ColorWhite, ColorNavy, ColorGrey, ColorOther}

// Order represents a customer order
type Order struct {
	ID               int64       `db:"id" json:"id"`
	OrderID          string      `db:"order_id" json:"order_id"`
	Flow             string      `db:"flow" json:"flow"`
	TotalItems       int         `db:"total_items" json:"total_items"`
	Subtotal         int64       `db:"subtotal" json:"subtotal"`
	DeliveryCharge   int64       `db:"delivery_charge" json:"delivery_charge"`
	TotalPrice       int64       `db:"total_price" json:"total_price"`
	CustomerName     string      `db:"customer_name" json:"customer_name"`
	CustomerPhone    string      `db:"customer_phone" json:"customer_phone"`
	SecondaryPhone   string      `db:"secondary_phone" json:"secondary_phone,omitempty"`
	CustomerEmail    string      `db:"customer_email" json:"customer_email"`
	CustomerAddress  string      `db:"customer_address" json:"customer_address"`
	DeliveryLocation string      `db:"delivery_location" json:"delivery_location"`
	PaymentMethod    string      `db:"payment_method" json:"payment_method"`
	TransactionID    string      `db:"transaction_id" json:"transaction_id,omitempty"`
	Status           string      `db:"order_status" json:"order_status"`
	IdempotencyKey   *string     `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
	Items            []OrderItem `db:"-" json:"items"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"-"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Size        string `db:"size" json:"size"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
	Subtotal    int64  `db:"subtotal" json:"subtotal"`
}

// Order flows
const (
	OrderFlowCart   = "cart"
	OrderFlowBuyNow = "buy_now"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OrderStatuses lists the order lifecycle in order
var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// IsValidOrderStatus reports whether s belongs to the order lifecycle
func IsValidOrderStatus(s string) bool {
	return contains(OrderStatuses, s)
}

// IsTerminalOrderStatus reports whether no transition may leave s
func IsTerminalOrderStatus(s string) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderStats is the admin dashboard summary
type OrderStats struct {
	Total      int64 `db:"total" json:"total"`
	Processing int64 `db:"processing" json:"processing"`
	Delivered  int64 `db:"delivered" json:"delivered"`
	Revenue    int64 `db:"revenue" json:"revenue"`
}

// CustomOrder is a quotation request for customer-supplied designs
type CustomOrder struct {
	ID              int64      `db:"id" json:"id"`
	CustomerName    string     `db:"customer_name" json:"customer_name"`
	CustomerPhone   string     `db:"customer_phone" json:"customer_phone"`
	CustomerEmail   string     `db:"customer_email" json:"customer_email,omitempty"`
	CustomerAddress string     `db:"customer_address" json:"customer_address"`
	Designs         DesignList `db:"designs" json:"designs"`
	Status          string     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Design is one uploaded artwork with placement instructions
type Design struct {
	DesignURL    string `json:"design_url"`
	Instructions string `json:"instructions"`
}

// Custom order statuses
const (
	CustomStatusPendingReview = "pending_review"
	CustomStatusApproved      = "approved"
	CustomStatusRejected      = "rejected"
	CustomStatusInProduction  = "in_production"
	CustomStatusShipped       = "shipped"
)

// CustomOrderStatuses lists the custom order statuses
var CustomOrderStatuses = []string{
	CustomStatusPendingReview,
	CustomStatusApproved,
	CustomStatusRejected,
	CustomStatusInProduction,
	CustomStatusShipped,
}

// IsValidCustomOrderStatus reports whether s is a custom order status
func IsValidCustomOrderStatus(s string) bool {
	return contains(CustomOrderStatuses, s)
}

// Message is a contact form submission
type Message struct {
	ID         int64     `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone,omitempty"`
	Subject    string    `db:"subject" json:"subject"`
	Body       string    `db:"message" json:"message"`
	Status     string    `db:"status" json:"status"`
	AdminNotes string    `db:"admin_notes" json:"admin_notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Message statuses
const (
	MessageStatusUnread  = "unread"
	MessageStatusRead    = "read"
	MessageStatusReplied = "replied"
)

// IsValidMessageStatus reports whether s is a message status
func IsValidMessageStatus(s string) bool {
	return s == MessageStatusUnread || s == MessageStatusRead || s == MessageStatusReplied
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
