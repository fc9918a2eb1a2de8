package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/lucasmira/pgdoc/compiler"
)

// decodeDoc reads a single JSON object from r, preserving key order, so the
// resulting compiler.Doc compiles to the same SQL/param numbering a client
// driver with an ordered document type would produce. encoding/json's
// Decoder.Token stream (which goccy/go-json mirrors) is what makes this
// possible — json.Unmarshal into a map would lose the order entirely.
func decodeDoc(r io.Reader) (compiler.Doc, error) {
	dec := json.NewDecoder(r)
	value, err := decodeOrderedValue(dec)
	if err != nil {
		return nil, err
	}
	doc, ok := value.(compiler.Doc)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value must be an object")
	}
	return doc, nil
}

func decodeOrderedValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		doc := compiler.Doc{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("expected object key, got %v", keyTok)
			}
			val, err := decodeOrderedValue(dec)
			if err != nil {
				return nil, err
			}
			doc = append(doc, compiler.Entry{Key: key, Value: val})
		}
		if _, err := dec.Token(); err != nil { // consume '}'
			return nil, err
		}
		return doc, nil

	case '[':
		arr := compiler.Arr{}
		for dec.More() {
			val, err := decodeOrderedValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil { // consume ']'
			return nil, err
		}
		return arr, nil

	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}
