package artifact

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// NetCDFEnd closes an NcML document. Decompressed metadata may carry
// garbage after it.
const NetCDFEnd = "</netcdf>"

// TrimMetadata cuts text after the closing netcdf tag. Text without the
// tag is returned unchanged.
func TrimMetadata(text []byte) []byte {
	i := bytes.Index(text, []byte(NetCDFEnd))
	if i < 0 {
		return text
	}
	return text[:i+len(NetCDFEnd)]
}

// GlobalAttributes returns the attributes declared directly under the
// root netcdf element.
func GlobalAttributes(text []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(text))
	attrs := make(map[string]string)
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return attrs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 && t.Name.Local == "attribute" {
				var name, value string
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "name":
						name = a.Value
					case "value":
						value = a.Value
					}
				}
				if name != "" {
					attrs[name] = value
				}
			}
		case xml.EndElement:
			depth--
		}
	}
}

// DatasetName returns the dataset_name global attribute.
func DatasetName(text []byte) (string, error) {
	attrs, err := GlobalAttributes(text)
	if err != nil {
		return "", err
	}
	name := attrs["dataset_name"]
	if name == "" {
		return "", ErrNoDatasetName
	}
	return name, nil
}
