package checkout

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"storefront/internal/cart"
	"storefront/internal/models"
)

var phonePattern = regexp.MustCompile(`^(?:\+88|88)?(01[3-9]\d{8})$`)

// NormalizePhone returns the 11-digit local form of a valid mobile number.
func NormalizePhone(s string) (string, bool) {
	m := phonePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

func validate() *validator.Validate {
	engineOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("bdphone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		}); err != nil {
			panic(err)
		}
		v.RegisterStructValidation(paymentRules, Details{})
		engine = v
	})
	return engine
}

func paymentRules(sl validator.StructLevel) {
	d := sl.Current().Interface().(Details)
	if !isKnownMethod(d.PaymentMethod) || !IsPrepaid(d.PaymentMethod) {
		return
	}
	if len([]rune(strings.TrimSpace(d.TransactionID))) < MinTransactionIDLength {
		sl.ReportError(d.TransactionID, "transaction_id", "TransactionID", "txnid", "")
	}
	if !d.PaymentConfirmed {
		sl.ReportError(d.PaymentConfirmed, "payment_confirmed", "PaymentConfirmed", "confirmed", "")
	}
}

func isKnownMethod(m string) bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "Details" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "bdphone":
		return "must be a valid Bangladeshi mobile number"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "startswith":
		return "must be an image"
	case "txnid":
		return fmt.Sprintf("transaction id of at least %d characters is required", MinTransactionIDLength)
	case "confirmed":
		return "payment must be confirmed"
	}
	return "is invalid"
}

func check(form interface{}) *ValidationError {
	verr := &ValidationError{}
	err := validate().Struct(form)
	if err == nil {
		return verr
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verr.add("form", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		verr.add(fieldPath(fe.Namespace()), message(fe))
	}
	return verr
}

// ValidateCartCheckout validates the details and the cart lines being
// submitted. An empty cart is reported on "items".
// ValidateCheckoutDetails checks the customer, delivery and payment fields
// of a cart checkout without looking at the cart itself.
func ValidateCheckoutDetails(f *CartCheckout) error {
	f.Normalize()
	return check(f).orNil()
}

func ValidateCartCheckout(f *CartCheckout, lines []cart.Line) error {
	f.Normalize()
	verr := check(f)
	if len(lines) == 0 {
		verr.add("items", "cart is empty")
	}
	for i, l := range lines {
		if l.Size == "" {
			verr.add(fmt.Sprintf("items[%d].size", i), "is required")
		}
		if l.Quantity < 1 {
			verr.add(fmt.Sprintf("items[%d].quantity", i), "must be at least 1")
		}
	}
	return verr.orNil()
}

// ValidateBuyNow validates a direct single-product order.
func ValidateBuyNow(f *BuyNow) error {
	f.Normalize()
	f.Size = strings.TrimSpace(f.Size)
	return check(f).orNil()
}

// ValidateCustomOrder validates a custom design request. maxBytes bounds
// each design file; zero disables the check.
func ValidateCustomOrder(f *CustomOrder, maxBytes int64) error {
	f.Normalize()
	verr := check(f)
	if maxBytes > 0 {
		for i, d := range f.Designs {
			if d.Size > maxBytes {
				verr.add(fmt.Sprintf("designs[%d].size", i), fmt.Sprintf("must be at most %d bytes", maxBytes))
			}
		}
	}
	return verr.orNil()
}

// ValidateContact validates a contact message.
func ValidateContact(f *Contact) error {
	f.Normalize()
	return check(f).orNil()
}

// ValidateProduct validates the admin product form against the closed
// category and color sets.
func ValidateProduct(f *ProductForm) error {
	f.Normalize()
	verr := check(f)
	if f.Category != "" && !oneOf(models.Categories, f.Category) {
		verr.add("category", "is not a known category")
	}
	if f.Color != "" && !oneOf(models.Colors, f.Color) {
		verr.add("color", "is not a known color")
	}
	seen := make(map[string]bool, len(f.Sizes))
	for i, s := range f.Sizes {
		if seen[s] {
			verr.add(fmt.Sprintf("sizes[%d]", i), "is listed twice")
		}
		seen[s] = true
	}
	return verr.orNil()
}

func oneOf(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
