package codec

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument is returned for a document payload whose name
// prefix does not fit the payload.
var ErrMalformedDocument = errors.New("grbr: malformed document payload")

// SplitDocument splits a decompressed GRB-INFO payload into its file name
// and body. The payload starts with one octet giving the name length,
// followed by the name and then the XML body.
func SplitDocument(payload []byte) (name string, body []byte, err error) {
	if len(payload) == 0 {
		return "", nil, fmt.Errorf("%w: empty", ErrMalformedDocument)
	}
	n := int(payload[0])
	if n == 0 || 1+n > len(payload) {
		return "", nil, fmt.Errorf("%w: name of %d octets in %d", ErrMalformedDocument, n, len(payload))
	}
	return string(payload[1 : 1+n]), payload[1+n:], nil
}
