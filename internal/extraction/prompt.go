package extraction

import (
	generativelanguage "google.golang.org/api/generativelanguage/v1beta"
)

// ExtractionPrompt is sent with every document.
const ExtractionPrompt = `You are an expert data extraction system.
Your task is to analyze the provided file and extract all relevant information
to populate a billing system.

The data is organized into three categories: Invoices, Products, and Customers.
- Invoices contain line items, the customer's company name, a status (Paid, Pending or Overdue)
  and the amount still pending if the document states one.
- Products have a name, brand, quantity, unit price, tax and discount.
- Customers have a name, phone number and company name.

Rules:
- An invoice's "customerId" must match the "id" of a customer in the "customers" list.
- A line item's "productId" must match the "id" of a product in the "products" list.
- If a customer or product appears more than once, reuse its "id".
- "id" fields are descriptive slugs such as "customer_john_doe" or "product_widget_blue".
- Do not extract a total purchase amount for customers; it is calculated later.
- Extract tax and discount as percentage numbers (e.g. 18 for 18%).
- Leave a field empty when the document does not state it. Do not guess.

Return the data in the specified JSON schema.`

// SpreadsheetPrompt is appended when the document is tabular text.
const SpreadsheetPrompt = `The following content is spreadsheet data converted to CSV.
Treat every data row as a transaction line: group rows that share an invoice or serial
number into one invoice, and derive products and customers from the row columns.`

// JSONShapeHint describes the response shape for providers without schema support.
const JSONShapeHint = `Respond with a single JSON object of this shape and nothing else:
{"invoices":[{"serialNumber":"","invoiceDate":"","customerId":"","companyName":"","status":"","amountPending":0,
"lineItems":[{"productId":"","qty":0}]}],
"products":[{"id":"","name":"","brand":"","discount":0,"quantity":0,"unitPrice":0,"tax":0}],
"customers":[{"id":"","name":"","phone":"","companyName":""}]}`

// promptFor returns the instruction text for a document.
func promptFor(doc *Document) string {
	if doc.Kind == KindSpreadsheet {
		return ExtractionPrompt + "\n\n" + SpreadsheetPrompt
	}
	return ExtractionPrompt
}

// ResponseSchema is the structured output contract passed to Gemini.
func ResponseSchema() *generativelanguage.Schema {
	str := generativelanguage.Schema{Type: "STRING"}
	num := generativelanguage.Schema{Type: "NUMBER"}

	lineItem := &generativelanguage.Schema{
		Type: "OBJECT",
		Properties: map[string]generativelanguage.Schema{
			"productId": str,
			"qty":       num,
		},
	}
	invoice := &generativelanguage.Schema{
		Type: "OBJECT",
		Properties: map[string]generativelanguage.Schema{
			"serialNumber":  str,
			"invoiceDate":   str,
			"customerId":    str,
			"companyName":   str,
			"status":        {Type: "STRING", Enum: []string{"Paid", "Pending", "Overdue"}},
			"amountPending": num,
			"lineItems":     {Type: "ARRAY", Items: lineItem},
		},
	}
	product := &generativelanguage.Schema{
		Type: "OBJECT",
		Properties: map[string]generativelanguage.Schema{
			"id":        str,
			"name":      str,
			"brand":     str,
			"discount":  num,
			"quantity":  num,
			"unitPrice": num,
			"tax":       num,
		},
	}
	customer := &generativelanguage.Schema{
		Type: "OBJECT",
		Properties: map[string]generativelanguage.Schema{
			"id":          str,
			"name":        str,
			"phone":       str,
			"companyName": str,
		},
	}

	return &generativelanguage.Schema{
		Type: "OBJECT",
		Properties: map[string]generativelanguage.Schema{
			"invoices":  {Type: "ARRAY", Items: invoice},
			"products":  {Type: "ARRAY", Items: product},
			"customers": {Type: "ARRAY", Items: customer},
		},
	}
}
