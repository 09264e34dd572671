package storage

import (
	"bytes"
	"encoding/json"

	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
)

// decode parses raw into a document. Blank input is an empty document.
func decode(op string, raw []byte) (docpath.Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return docpath.Document{}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, dberr.Malformed(op, "", err)
	}
	doc, ok := docpath.AsObject(v)
	if !ok {
		return nil, dberr.Malformed(op, "", &shapeError{got: docpath.TypeName(v)})
	}
	if doc == nil {
		return docpath.Document{}, nil
	}
	if key, err := CheckShape(doc); err != nil {
		return nil, dberr.Malformed(op, key, err)
	}
	return doc, nil
}

// encode serializes doc with tab indentation.
func encode(doc docpath.Document) ([]byte, error) {
	if doc == nil {
		doc = docpath.Document{}
	}
	return json.MarshalIndent(doc, "", "\t")
}

type shapeError struct {
	got string
}

func (e *shapeError) Error() string {
	return "document root is " + e.got + ", want object"
}
