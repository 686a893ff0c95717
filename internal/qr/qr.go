// Package qr implements the ZATCA tag-length-value QR payload. Each field is
// emitted as a single tag byte, a one-byte UTF-8 length and the raw value
// bytes; the base64 form of the concatenated triples is what gets printed on
// the invoice.
package qr

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hypernova-labs/zatca-service/internal/models"
)

// Field tags in their mandated order
const (
	tagSellerName = 1
	tagVATNumber  = 2
	tagTimestamp  = 3
	tagTotal      = 4
	tagTaxAmount  = 5
)

// maxValueLen is the largest value a one-byte length can describe
const maxValueLen = 255

// Payload holds the five invoice fields carried in the QR code
type Payload struct {
	SellerName string
	VATNumber  string
	Timestamp  string
	Total      string
	TaxAmount  string
}

// FromInvoice derives the QR payload from an invoice. The derivation is
// deterministic: the same invoice always yields the same payload.
func FromInvoice(inv *models.Invoice) Payload {
	vat := ""
	if inv.Supplier.VATNumber != nil {
		vat = *inv.Supplier.VATNumber
	}
	return Payload{
		SellerName: inv.Supplier.Name,
		VATNumber:  vat,
		Timestamp:  inv.IssueDate.UTC().Format(time.RFC3339),
		Total:      inv.GrandTotal.StringFixed(2),
		TaxAmount:  inv.TaxTotal.StringFixed(2),
	}
}

// Encode serializes the payload as TLV triples in tag order 1..5
func (p Payload) Encode() ([]byte, error) {
	fields := []struct {
		tag   byte
		value string
	}{
		{tagSellerName, p.SellerName},
		{tagVATNumber, p.VATNumber},
		{tagTimestamp, p.Timestamp},
		{tagTotal, p.Total},
		{tagTaxAmount, p.TaxAmount},
	}

	var out []byte
	for _, f := range fields {
		raw := []byte(f.value)
		if len(raw) > maxValueLen {
			return nil, fmt.Errorf("field %d exceeds %d bytes", f.tag, maxValueLen)
		}
		out = append(out, f.tag, byte(len(raw)))
		out = append(out, raw...)
	}
	return out, nil
}

// EncodeBase64 returns the base64 wire form stored on the invoice
func (p Payload) EncodeBase64() (string, error) {
	raw, err := p.Encode()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reconstructs a payload from TLV bytes. It expects exactly the five
// known tags in order and rejects truncated or trailing data, so a decoded
// payload always round-trips to the same bytes.
func Decode(data []byte) (Payload, error) {
	var p Payload
	pos := 0
	for _, want := range []byte{tagSellerName, tagVATNumber, tagTimestamp, tagTotal, tagTaxAmount} {
		if pos+2 > len(data) {
			return Payload{}, fmt.Errorf("truncated payload at tag %d", want)
		}
		tag, length := data[pos], int(data[pos+1])
		if tag != want {
			return Payload{}, fmt.Errorf("unexpected tag %d, want %d", tag, want)
		}
		pos += 2
		if pos+length > len(data) {
			return Payload{}, fmt.Errorf("tag %d value truncated", tag)
		}
		value := string(data[pos : pos+length])
		pos += length

		switch tag {
		case tagSellerName:
			p.SellerName = value
		case tagVATNumber:
			p.VATNumber = value
		case tagTimestamp:
			p.Timestamp = value
		case tagTotal:
			p.Total = value
		case tagTaxAmount:
			p.TaxAmount = value
		}
	}
	if pos != len(data) {
		return Payload{}, fmt.Errorf("%d trailing bytes after last field", len(data)-pos)
	}
	return p, nil
}

// DecodeBase64 decodes the base64 wire form
func DecodeBase64(s string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Payload{}, fmt.Errorf("error decoding base64 payload: %w", err)
	}
	return Decode(raw)
}
