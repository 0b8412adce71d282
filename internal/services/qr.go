package services

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// QRPayload is the decoded content of an inventory QR code
type QRPayload struct {
	Name     string `validate:"required,max=255"`
	Category string `validate:"required,max=100"`
	Quantity int64  `validate:"gt=0"`
}

// ParseQRPayload decodes text of the form key1=value1|key2=value2.
// name, category and a positive integer quantity are required; other keys
// are ignored.
func ParseQRPayload(text string) (*QRPayload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErrorf("QR payload is empty")
	}

	fields := make(map[string]string)
	for _, part := range strings.Split(text, "|") {
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, validationErrorf("malformed QR field %q, expected key=value", part)
		}
		fields[key] = strings.TrimSpace(value)
	}

	for _, key := range []string{"name", "category", "quantity"} {
		if _, ok := fields[key]; !ok {
			return nil, validationErrorf("QR payload is missing %q", key)
		}
	}

	quantity, err := strconv.ParseInt(fields["quantity"], 10, 64)
	if err != nil {
		return nil, validationErrorf("quantity %q is not an integer", fields["quantity"])
	}

	payload := &QRPayload{
		Name:     fields["name"],
		Category: fields["category"],
		Quantity: quantity,
	}
	if err := validate.Struct(payload); err != nil {
		return nil, validationErrorf("invalid QR payload: %s", describe(err))
	}
	return payload, nil
}

// describe renders validator errors as "field: rule" pairs
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" must satisfy "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
