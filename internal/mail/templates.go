package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"storefront/internal/domain"
)

const OrderConfirmationSubject = "Order Confirmation"

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`<!DOCTYPE html>
<html>
<body>
<h2>Thank you for your order{{if .Name}}, {{.Name}}{{end}}!</h2>
<p>Your order #{{.Order.ID}} has been placed and is currently {{.Order.Status}}.</p>
<table>
<tr><th>Product</th><th>Quantity</th><th>Unit price</th><th>Total</th></tr>
{{range .Items}}<tr><td>#{{.ProductID}}</td><td>{{.Quantity}}</td><td>{{.UniquePrice.StringFixed 2}}</td><td>{{.TotalAmount.StringFixed 2}}</td></tr>
{{end}}</table>
<p>Payment method: {{.Order.PaymentMethod}}</p>
<p><strong>Total amount: {{.Order.TotalAmount.StringFixed 2}}</strong></p>
</body>
</html>
`))

type orderConfirmationData struct {
	Name  string
	Order *domain.Order
	Items []*domain.OrderItem
}

// OrderConfirmation renders the receipt sent after an order is placed
func OrderConfirmation(user *domain.User, order *domain.Order, items []*domain.OrderItem) (Message, error) {
	var buf bytes.Buffer
	err := orderConfirmationTmpl.Execute(&buf, orderConfirmationData{
		Name:  user.Name,
		Order: order,
		Items: items,
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to render order confirmation: %w", err)
	}

	return NewMessage(user.Email, OrderConfirmationSubject, buf.String()), nil
}
