package notify

import (
	"bytes"
	"text/template"

	"smartshop/internal/usecase"

	"github.com/shopspring/decimal"
)

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(
	`Hello {{.DeliveryName}},

{{if eq .Status "PROCESSING"}}We received your payment for order {{.OrderCode}}. It is now being prepared.{{else}}Thank you for your order {{.OrderCode}}.{{end}}

{{range .Items}}- {{.Name}} x {{.Quantity}}  {{money .Price}}  = {{money .Subtotal}}
{{end}}
Total: {{money .Total}}

Delivery to:
{{.DeliveryName}}
{{.DeliveryAddress}}
{{.DeliveryCity}}{{if .DeliveryCounty}}, {{.DeliveryCounty}}{{end}}{{if .DeliveryPostalCode}} {{.DeliveryPostalCode}}{{end}}
{{.DeliveryCountry}}
Phone: {{.DeliveryPhone}}
`))

var adminAlertTmpl = template.Must(template.New("admin_alert").Funcs(funcs).Parse(
	`New order {{.OrderCode}} (id {{.ID}}, user {{.UserID}})

Customer: {{.DeliveryName}} <{{.DeliveryEmail}}> {{.DeliveryPhone}}
Total: {{money .Total}}
Items: {{len .Items}}
{{if .DeliveryNotes}}Notes: {{.DeliveryNotes}}
{{end}}`))

func confirmationSubject(o usecase.OrderOutput) string {
	if o.Status == "PROCESSING" {
		return "Payment received - " + o.OrderCode
	}
	return "Order confirmation - " + o.OrderCode
}

func adminAlertSubject(o usecase.OrderOutput) string {
	return "New order " + o.OrderCode
}

func render(t *template.Template, o usecase.OrderOutput) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, o); err != nil {
		return "", err
	}
	return buf.String(), nil
}
