package billing

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"golang.org/x/sync/singleflight"

	"github.com/motorlot/motorlot/report"
)

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.ID}}</title></head>
<body>
  <h1>Invoice {{.ID}}</h1>
  <table>
    <tr><td>Seller</td><td>{{.SellerID}}</td></tr>
    {{if .SubscriptionID}}<tr><td>Subscription</td><td>{{.SubscriptionID}}</td></tr>{{end}}
    <tr><td>Amount</td><td>{{printf "%.2f" .Amount}} {{.Currency}}</td></tr>
    <tr><td>Status</td><td>{{.Status}}</td></tr>
    <tr><td>Issued</td><td>{{.CreatedAt.Format "2006-01-02"}}</td></tr>
    {{if .PaidAt}}<tr><td>Paid</td><td>{{.PaidAt.Format "2006-01-02"}}</td></tr>{{end}}
  </table>
</body>
</html>`))

// PDFExporter renders invoices to PDF through Gotenberg. Identical renders
// requested concurrently collapse into one upstream call.
type PDFExporter struct {
	renderer report.Renderer
	group    singleflight.Group
}

// NewPDFExporter constructs the exporter.
func NewPDFExporter(renderer report.Renderer) *PDFExporter {
	return &PDFExporter{renderer: renderer}
}

type invoiceView struct {
	Invoice
	Amount float64
}

// Export renders one invoice. The dedup key includes the update timestamp
// so a settled invoice never reuses an in-flight render of its open state.
func (e *PDFExporter) Export(ctx context.Context, invoice Invoice) ([]byte, error) {
	key := fmt.Sprintf("%s@%d", invoice.ID, invoice.UpdatedAt.UnixNano())
	result := e.group.DoChan(key, func() (any, error) {
		var buf bytes.Buffer
		view := invoiceView{Invoice: invoice, Amount: float64(invoice.AmountCents) / 100}
		if err := invoiceTemplate.Execute(&buf, view); err != nil {
			return nil, fmt.Errorf("render invoice template: %w", err)
		}
		return e.renderer.RenderHTML(ctx, buf.String())
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
