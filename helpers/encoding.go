package helpers

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Big5 is the legacy charset of the Taitung auction site
var Big5 encoding.Encoding = traditionalchinese.Big5

// FormField is one name/value pair of a submitted form, kept in document order
type FormField struct {
	Name  string
	Value string
}

// EncodeForm builds an application/x-www-form-urlencoded body whose names and
// values are first converted to enc, then percent-encoded byte by byte
func EncodeForm(fields []FormField, enc encoding.Encoding) (string, error) {
	encoder := enc.NewEncoder()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		name, err := encoder.String(f.Name)
		if err != nil {
			return "", fmt.Errorf("failed to encode field name %q: %w", f.Name, err)
		}
		value, err := encoder.String(f.Value)
		if err != nil {
			return "", fmt.Errorf("failed to encode value of %q: %w", f.Name, err)
		}
		parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(value))
	}
	return strings.Join(parts, "&"), nil
}
