// Package report renders admin exports: order history as CSV and per-order
// invoices as PDF.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
)

var orderColumns = []string{
	"order_id", "created_at", "status", "flow",
	"customer_name", "customer_phone", "secondary_phone", "customer_email", "customer_address",
	"delivery_location", "payment_method", "transaction_id",
	"product_id", "product_name", "size", "quantity", "unit_price", "line_subtotal",
	"subtotal", "delivery_charge", "total_price",
}

// WriteOrdersCSV writes one row per order line. An order without lines still
// gets a row so its totals are not lost.
func WriteOrdersCSV(w io.Writer, orders []models.Order) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderColumns); err != nil {
		return err
	}

	for _, o := range orders {
		head := []string{
			o.OrderID, o.CreatedAt.UTC().Format(time.RFC3339), o.Status, o.Flow,
			cell(o.CustomerName), cell(o.CustomerPhone), cell(o.SecondaryPhone), cell(o.CustomerEmail), cell(o.CustomerAddress),
			o.DeliveryLocation, o.PaymentMethod, cell(o.TransactionID),
		}
		tail := []string{money(o.Subtotal), money(o.DeliveryCharge), money(o.TotalPrice)}

		if len(o.Items) == 0 {
			row := append(append(append([]string{}, head...), "", "", "", "", "", ""), tail...)
			if err := cw.Write(row); err != nil {
				return err
			}
			continue
		}
		for _, it := range o.Items {
			line := []string{
				strconv.FormatInt(it.ProductID, 10), cell(it.ProductName), cell(it.Size),
				strconv.Itoa(it.Quantity), money(it.UnitPrice), money(it.Subtotal),
			}
			row := append(append(append([]string{}, head...), line...), tail...)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func money(v int64) string { return strconv.FormatInt(v, 10) }

// cell neutralises spreadsheet formula prefixes in free-text fields.
func cell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
