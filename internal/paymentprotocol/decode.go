package paymentprotocol

import (
	"mime"
	"strings"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// DecodeRequest parses a payment request served with the given content type.
func DecodeRequest(contentType string, body []byte) (*Request, error) {
	mediaType, err := parseMediaType(contentType)
	if err != nil {
		return nil, err
	}

	switch mediaType {
	case MIMEPaymentRequestJSON:
		return decodeRequestJSON(body)
	case MIMEPaymentRequestBinary:
		return decodeRequestBinary(body)
	default:
		return nil, payerr.WithDetails(payerr.ErrInvalidFormat, map[string]string{"content_type": contentType})
	}
}

// parseMediaType returns the lower-cased media type without parameters.
func parseMediaType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", payerr.WithDetails(payerr.ErrInvalidFormat, map[string]string{"content_type": "missing"})
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", payerr.WithCause(payerr.ErrInvalidFormat, err)
	}
	return strings.ToLower(mediaType), nil
}
