// Package checkout holds the storefront and back-office forms and their validation.
// Validation never touches the network; a failing form comes back as a
// *ValidationError keyed by field.
package checkout

import (
	"strings"

	"storefront/internal/pricing"
)

// Payment methods
const (
	MethodCOD   = "cod"
	MethodBkash = "bkash"
	MethodNagad = "nagad"
	MethodTrust = "trust"
	MethodBrac  = "brac"
)

var PaymentMethods = []string{MethodCOD, MethodBkash, MethodNagad, MethodTrust, MethodBrac}

const MinTransactionIDLength = 5

// IsPrepaid reports whether the method needs a transaction reference.
func IsPrepaid(method string) bool {
	return method != MethodCOD
}

// Details are the customer, delivery and payment fields shared by every
// order flow.
type Details struct {
	Name             string `json:"name" validate:"required,min=2"`
	Phone            string `json:"phone" validate:"required,bdphone"`
	SecondaryPhone   string `json:"secondary_phone" validate:"omitempty,bdphone"`
	Email            string `json:"email" validate:"required,email"`
	Address          string `json:"address" validate:"required,min=10"`
	DeliveryLocation string `json:"delivery_location" validate:"required,oneof=dhaka outside"`
	PaymentMethod    string `json:"payment_method" validate:"required,oneof=cod bkash nagad trust brac"`
	TransactionID    string `json:"transaction_id"`
	PaymentConfirmed bool   `json:"payment_confirmed"`
	IdempotencyKey   string `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// Normalize trims surrounding whitespace and lowercases enum fields.
func (d *Details) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Phone = strings.TrimSpace(d.Phone)
	d.SecondaryPhone = strings.TrimSpace(d.SecondaryPhone)
	d.Email = strings.TrimSpace(d.Email)
	d.Address = strings.TrimSpace(d.Address)
	d.DeliveryLocation = strings.ToLower(strings.TrimSpace(d.DeliveryLocation))
	d.PaymentMethod = strings.ToLower(strings.TrimSpace(d.PaymentMethod))
	d.TransactionID = strings.TrimSpace(d.TransactionID)
	d.IdempotencyKey = strings.TrimSpace(d.IdempotencyKey)
	if !IsPrepaid(d.PaymentMethod) {
		d.TransactionID = ""
		d.PaymentConfirmed = false
	}
}

// CartCheckout submits the lines of a stored cart.
type CartCheckout struct {
	Details
}

// BuyNow orders a single product directly, bypassing the cart.
type BuyNow struct {
	Details
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

// DesignUpload describes one uploaded design file. Content is filled in by
// the transport layer and never serialized.
type DesignUpload struct {
	Filename     string `json:"filename" validate:"required"`
	ContentType  string `json:"content_type" validate:"required,startswith=image/"`
	Size         int64  `json:"size" validate:"gt=0"`
	Instructions string `json:"instructions" validate:"max=2000"`
	Content      []byte `json:"-"`
}

// CustomOrder is the custom design request form.
type CustomOrder struct {
	Name    string         `json:"name" validate:"required,min=2"`
	Phone   string         `json:"phone" validate:"required,bdphone"`
	Email   string         `json:"email" validate:"omitempty,email"`
	Address string         `json:"address" validate:"required,min=10"`
	Designs []DesignUpload `json:"designs" validate:"required,min=1,max=10,dive"`
}

func (f *CustomOrder) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Email = strings.TrimSpace(f.Email)
	f.Address = strings.TrimSpace(f.Address)
	for i := range f.Designs {
		f.Designs[i].Instructions = strings.TrimSpace(f.Designs[i].Instructions)
	}
}

// Contact is the contact-us form.
type Contact struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,bdphone"`
	Subject   string `json:"subject" validate:"required,max=200"`
	Message   string `json:"message" validate:"required,max=5000"`
}

func (f *Contact) Normalize() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Message = strings.TrimSpace(f.Message)
}

// ProductForm is the admin create/edit form for a catalog product.
type ProductForm struct {
	Name        string                `json:"name" validate:"required,max=200"`
	Description string                `json:"description" validate:"max=5000"`
	Category    string                `json:"category" validate:"required"`
	Price       int64                 `json:"price" validate:"gt=0"`
	Discount    pricing.DiscountInput `json:"discount" validate:"-"`
	Color       string                `json:"color" validate:"required"`
	Sizes       []string              `json:"sizes" validate:"required,min=1,dive,required,max=10"`
	Stock       int                   `json:"stock" validate:"min=0"`
}

func (f *ProductForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	f.Color = strings.TrimSpace(f.Color)
	for i := range f.Sizes {
		f.Sizes[i] = strings.ToUpper(strings.TrimSpace(f.Sizes[i]))
	}
}
