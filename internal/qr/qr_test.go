package qr

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypernova-labs/zatca-service/internal/models"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
	}{
		{
			name: "ascii fields",
			payload: Payload{
				SellerName: "Acme Trading LLC",
				VATNumber:  "310122393500003",
				Timestamp:  "2024-01-15T10:30:00Z",
				Total:      "115.00",
				TaxAmount:  "15.00",
			},
		},
		{
			name: "arabic seller name",
			payload: Payload{
				SellerName: "شركة التجارة السعودية",
				VATNumber:  "300000000000003",
				Timestamp:  "2024-06-01T00:00:00Z",
				Total:      "1150.00",
				TaxAmount:  "0.00",
			},
		},
		{
			name: "empty tax amount",
			payload: Payload{
				SellerName: "Seller",
				VATNumber:  "1",
				Timestamp:  "2024-01-01T00:00:00Z",
				Total:      "0",
				TaxAmount:  "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.payload.Encode()
			require.NoError(t, err)

			decoded, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, decoded)
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	p := Payload{
		SellerName: "AB",
		VATNumber:  "12",
		Timestamp:  "T",
		Total:      "9",
		TaxAmount:  "1",
	}

	raw, err := p.Encode()
	require.NoError(t, err)

	want := []byte{
		1, 2, 'A', 'B',
		2, 2, '1', '2',
		3, 1, 'T',
		4, 1, '9',
		5, 1, '1',
	}
	assert.Equal(t, want, raw)
}

func TestEncodeLengthIsByteLength(t *testing.T) {
	// Multibyte UTF-8 values must be measured in bytes, not runes
	p := Payload{
		SellerName: "شركة",
		VATNumber:  "1",
		Timestamp:  "T",
		Total:      "9",
		TaxAmount:  "1",
	}

	raw, err := p.Encode()
	require.NoError(t, err)

	assert.Equal(t, byte(1), raw[0])
	assert.Equal(t, byte(len([]byte("شركة"))), raw[1])

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "شركة", decoded.SellerName)
}

func TestEncodeOversizedField(t *testing.T) {
	p := Payload{
		SellerName: strings.Repeat("x", 256),
		VATNumber:  "1",
		Timestamp:  "T",
		Total:      "9",
		TaxAmount:  "1",
	}

	_, err := p.Encode()
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	valid, err := Payload{
		SellerName: "S",
		VATNumber:  "1",
		Timestamp:  "T",
		Total:      "9",
		TaxAmount:  "1",
	}.Encode()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty input", []byte{}},
		{"truncated header", []byte{1}},
		{"truncated value", []byte{1, 5, 'S'}},
		{"wrong first tag", []byte{2, 1, 'S'}},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
		{"tags out of order", func() []byte {
			swapped := append([]byte{}, valid...)
			// swap the first two triples (1-byte values each)
			swapped[0], swapped[3] = swapped[3], swapped[0]
			swapped[2], swapped[5] = swapped[5], swapped[2]
			return swapped
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	p := Payload{
		SellerName: "Seller",
		VATNumber:  "310122393500003",
		Timestamp:  "2024-01-15T10:30:00Z",
		Total:      "115.00",
		TaxAmount:  "15.00",
	}

	encoded, err := p.EncodeBase64()
	require.NoError(t, err)

	// the wire form is valid base64
	_, err = base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	decoded, err := DecodeBase64(encoded)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)

	_, err = DecodeBase64("not-base64!!!")
	assert.Error(t, err)
}

func TestFromInvoice(t *testing.T) {
	vat := "310122393500003"
	issued := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	inv := &models.Invoice{
		IssueDate:  issued,
		Supplier:   models.Party{Name: "Acme Trading LLC", VATNumber: &vat},
		TaxTotal:   decimal.RequireFromString("15"),
		GrandTotal: decimal.RequireFromString("115"),
	}

	p := FromInvoice(inv)
	assert.Equal(t, "Acme Trading LLC", p.SellerName)
	assert.Equal(t, "310122393500003", p.VATNumber)
	assert.Equal(t, "2024-01-15T10:30:00Z", p.Timestamp)
	assert.Equal(t, "115.00", p.Total)
	assert.Equal(t, "15.00", p.TaxAmount)

	// deterministic for the same invoice
	assert.Equal(t, p, FromInvoice(inv))
}

func TestFromInvoiceMissingVAT(t *testing.T) {
	inv := &models.Invoice{
		IssueDate: time.Now(),
		Supplier:  models.Party{Name: "Seller"},
	}

	p := FromInvoice(inv)
	assert.Empty(t, p.VATNumber)
}
