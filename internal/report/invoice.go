package report

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"storefront/internal/models"
)

// Shop is the seller block printed on invoices.
type Shop struct {
	Name    string
	Address string
	Phone   string
	Email   string
	SiteURL string
}

// Invoice renders a one-page A4 invoice. The QR code encodes the order
// tracking URL, or the bare order id when no site URL is configured.
func Invoice(order *models.Order, shop Shop) ([]byte, error) {
	payload := order.OrderID
	if shop.SiteURL != "" {
		payload = fmt.Sprintf("%s/orders/%s", shop.SiteURL, order.OrderID)
	}
	qrPNG, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generate qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+order.OrderID, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(120, 10, tr(shop.Name))
	pdf.SetFont("Arial", "", 10)
	pdf.Ln(8)
	for _, line := range []string{shop.Address, shop.Phone, shop.Email} {
		if line != "" {
			pdf.Cell(120, 5, tr(line))
			pdf.Ln(5)
		}
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 10, 35, 35, false, imageOpts, 0, "")

	pdf.SetY(50)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Invoice "+order.OrderID)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, "Date: "+order.CreatedAt.Format("02 Jan 2006 15:04"))
	pdf.Ln(5)
	pdf.Cell(0, 5, "Status: "+order.Status)
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 6, "Bill to")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, tr(order.CustomerName))
	pdf.Ln(5)
	pdf.Cell(0, 5, order.CustomerPhone)
	pdf.Ln(5)
	pdf.MultiCell(0, 5, tr(order.CustomerAddress), "", "L", false)
	pdf.Ln(4)

	widths := []float64{80, 20, 20, 30, 30}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for i, h := range []string{"Item", "Size", "Qty", "Unit price", "Amount"} {
		align := "L"
		if i >= 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, it := range order.Items {
		pdf.CellFormat(widths[0], 7, tr(it.ProductName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(it.Size), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%d", it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, taka(it.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, taka(it.Subtotal), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	summary := [][2]string{
		{"Subtotal", taka(order.Subtotal)},
		{"Delivery (" + order.DeliveryLocation + ")", taka(order.DeliveryCharge)},
		{"Total", taka(order.TotalPrice)},
	}
	for i, row := range summary {
		if i == len(summary)-1 {
			pdf.SetFont("Arial", "B", 10)
		}
		pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3], 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, row[1], "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "", 9)
	payment := "Payment: " + order.PaymentMethod
	if order.TransactionID != "" {
		payment += " (txn " + order.TransactionID + ")"
	}
	pdf.Cell(0, 5, tr(payment))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func taka(v int64) string {
	return fmt.Sprintf("Tk %d", v)
}
