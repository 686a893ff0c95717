package ubl

import (
	"encoding/xml"
	"fmt"
)

// Serialize renders the document as indented UTF-8 XML with the standard
// declaration. The output is what gets hashed, signed and submitted.
func Serialize(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error serializing document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
