package checkout

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/cart"
)

func validDetails() Details {
	return Details{
		Name:             "Rahim Uddin",
		Phone:            "01712345678",
		Email:            "rahim@example.com",
		Address:          "House 12, Road 5, Dhanmondi",
		DeliveryLocation: "dhaka",
		PaymentMethod:    MethodCOD,
	}
}

func oneLine() []cart.Line {
	return []cart.Line{{Product: cart.ProductSnapshot{ID: 1, Name: "Tee", Price: 500}, Size: "M", Quantity: 1, SelectedPrice: 500}}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Fields
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"01712345678":    "01712345678",
		"+8801912345678": "01912345678",
		"8801312345678":  "01312345678",
		" 01812345678 ":  "01812345678",
	}
	for in, want := range cases {
		got, ok := NormalizePhone(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"", "01212345678", "0171234567", "+8701712345678", "017123456789"} {
		_, ok := NormalizePhone(bad)
		assert.False(t, ok, bad)
	}
}

func TestValidateCartCheckoutOK(t *testing.T) {
	f := &CartCheckout{Details: validDetails()}
	assert.NoError(t, ValidateCartCheckout(f, oneLine()))
}

func TestValidateCartCheckoutFieldErrors(t *testing.T) {
	f := &CartCheckout{Details: Details{
		Name:             " R ",
		Phone:            "12345",
		SecondaryPhone:   "999",
		Email:            "nope",
		Address:          "short",
		DeliveryLocation: "chittagong",
		PaymentMethod:    "paypal",
	}}

	fields := fieldsOf(t, ValidateCartCheckout(f, nil))
	for _, key := range []string{"name", "phone", "secondary_phone", "email", "address", "delivery_location", "payment_method", "items"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "must be at least 2 characters", fields["name"])
	assert.Equal(t, "cart is empty", fields["items"])
}

func TestValidatePrepaidNeedsTransaction(t *testing.T) {
	d := validDetails()
	d.PaymentMethod = MethodBkash
	d.TransactionID = " 8N7 "

	fields := fieldsOf(t, ValidateCartCheckout(&CartCheckout{Details: d}, oneLine()))
	assert.Contains(t, fields, "transaction_id")
	assert.Contains(t, fields, "payment_confirmed")

	d.TransactionID = "8N7A6D5F"
	d.PaymentConfirmed = true
	assert.NoError(t, ValidateCartCheckout(&CartCheckout{Details: d}, oneLine()))
}

func TestValidateCODClearsTransaction(t *testing.T) {
	d := validDetails()
	d.TransactionID = "leftover"
	d.PaymentConfirmed = true
	f := &CartCheckout{Details: d}

	require.NoError(t, ValidateCartCheckout(f, oneLine()))
	assert.Empty(t, f.TransactionID)
	assert.False(t, f.PaymentConfirmed)
}

func TestValidateNormalizesEnums(t *testing.T) {
	d := validDetails()
	d.DeliveryLocation = " Outside "
	d.PaymentMethod = "COD"
	f := &CartCheckout{Details: d}

	require.NoError(t, ValidateCartCheckout(f, oneLine()))
	assert.Equal(t, "outside", f.DeliveryLocation)
	assert.Equal(t, "cod", f.PaymentMethod)
}

func TestValidateCartLines(t *testing.T) {
	lines := []cart.Line{{Product: cart.ProductSnapshot{ID: 1}, Quantity: 0}}
	fields := fieldsOf(t, ValidateCartCheckout(&CartCheckout{Details: validDetails()}, lines))
	assert.Contains(t, fields, "items[0].size")
	assert.Contains(t, fields, "items[0].quantity")
}

func TestValidateBuyNow(t *testing.T) {
	f := &BuyNow{Details: validDetails(), ProductID: 3, Size: "L", Quantity: 2}
	assert.NoError(t, ValidateBuyNow(f))

	f = &BuyNow{Details: validDetails()}
	fields := fieldsOf(t, ValidateBuyNow(f))
	assert.Contains(t, fields, "product_id")
	assert.Contains(t, fields, "size")
	assert.Contains(t, fields, "quantity")
}

func TestValidateCustomOrder(t *testing.T) {
	f := &CustomOrder{
		Name:    "Karim",
		Phone:   "+8801712345678",
		Address: "Block C, Mirpur 10, Dhaka",
		Designs: []DesignUpload{
			{Filename: "front.png", ContentType: "image/png", Size: 1024},
			{Filename: "notes.pdf", ContentType: "application/pdf", Size: 4096},
		},
	}
	fields := fieldsOf(t, ValidateCustomOrder(f, 2048))
	assert.Contains(t, fields, "designs[1].content_type")
	assert.Contains(t, fields, "designs[1].size")
	assert.NotContains(t, fields, "designs[0].content_type")

	f.Designs = f.Designs[:1]
	assert.NoError(t, ValidateCustomOrder(f, 2048))

	f.Designs = nil
	fields = fieldsOf(t, ValidateCustomOrder(f, 0))
	assert.Contains(t, fields, "designs")
}

func TestValidateContact(t *testing.T) {
	f := &Contact{FirstName: "Ana", LastName: "Roy", Email: "ana@example.com", Subject: "Sizing", Message: "Do hoodies run large?"}
	assert.NoError(t, ValidateContact(f))

	f.Phone = "123"
	f.Message = "   "
	fields := fieldsOf(t, ValidateContact(f))
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "message")
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"phone": "bad", "email": "bad"}}
	assert.True(t, strings.HasPrefix(err.Error(), "validation failed: email: bad; phone"))
}

func TestValidateProduct(t *testing.T) {
	f := &ProductForm{
		Name:     " Classic Drop Tee ",
		Category: "Drop Shoulder Tees",
		Price:    950,
		Color:    "Black",
		Sizes:    []string{"m", " L"},
	}
	require.NoError(t, ValidateProduct(f))
	assert.Equal(t, "Classic Drop Tee", f.Name)
	assert.Equal(t, []string{"M", "L"}, f.Sizes)

	f.Category = "Socks"
	f.Color = "Purple"
	f.Price = 0
	f.Sizes = []string{"M", "m"}
	fields := fieldsOf(t, ValidateProduct(f))
	assert.Contains(t, fields, "category")
	assert.Contains(t, fields, "color")
	assert.Contains(t, fields, "price")
	assert.Contains(t, fields, "sizes[1]")
}
