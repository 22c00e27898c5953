package xmlcodec

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/sdcgo/sdc-core/internal/model"
)

// MdibDocument is the canonical GetMdibResponse wire document: every
// descriptor and state in the MDIB at one version, flattened. It is used
// both for the GetMdib SOAP response body and for export_snapshot /
// import_snapshot (spec.md §6 operator bootstrap/diagnostics path).
type MdibDocument struct {
	XMLName     xml.Name         `xml:"GetMdibResponse"`
	MdibVersion uint64           `xml:"MdibVersion,attr"`
	SequenceID  string           `xml:"SequenceId,attr,omitempty"`
	Descriptors []wireDescriptor `xml:"MdDescription>Descriptor"`
	States      []wireState      `xml:"MdState>State"`
}

// entityKind pairs a handle with its descriptor kind. EncodeDocument
// does not use it; it passes each entity's kind to EncodeState directly.
type entityKind struct {
	handle model.Handle
	kind   model.DescriptorKind
}

// EncodeDocument builds the wire document for a set of entities at the
// given MDIB version and sequence id.
func EncodeDocument(version uint64, sequenceID string, entities []model.Entity) MdibDocument {
	doc := MdibDocument{MdibVersion: version, SequenceID: sequenceID}
	for _, e := range entities {
		doc.Descriptors = append(doc.Descriptors, EncodeDescriptor(e.Descriptor))
		for _, st := range e.States {
			doc.States = append(doc.States, EncodeState(st, e.Descriptor.Kind))
		}
	}
	return doc
}

// Marshal renders doc as an indented XML document with the standard XML
// declaration.
func Marshal(doc MdibDocument) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("xmlcodec: marshal document: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeDocument parses a wire document back into entities, keyed by
// handle, reassembling each descriptor with its state(s). It returns a
// DecodeError if any descriptor or state fails schema validation, or if a
// state references a descriptor handle not present in the document.
func DecodeDocument(raw []byte) (version uint64, sequenceID string, entities []model.Entity, err error) {
	var doc MdibDocument
	if decErr := xml.Unmarshal(raw, &doc); decErr != nil {
		return 0, "", nil, newDecodeErr(MalformedXML, "/GetMdibResponse", decErr)
	}
	byHandle := make(map[model.Handle]*model.Entity, len(doc.Descriptors))
	order := make([]model.Handle, 0, len(doc.Descriptors))
	for _, wd := range doc.Descriptors {
		d, decErr := DecodeDescriptor(wd)
		if decErr != nil {
			return 0, "", nil, decErr
		}
		byHandle[d.Handle] = &model.Entity{Descriptor: d}
		order = append(order, d.Handle)
	}
	for _, ws := range doc.States {
		h := model.Handle(ws.DescriptorHandle)
		e, ok := byHandle[h]
		if !ok {
			return 0, "", nil, newDecodeErr(SchemaViolation, "/MdState/State[@DescriptorHandle='"+ws.DescriptorHandle+"']", nil)
		}
		st, decErr := DecodeState(ws, e.Descriptor.Kind)
		if decErr != nil {
			return 0, "", nil, decErr
		}
		e.States = append(e.States, st)
	}
	entities = make([]model.Entity, 0, len(order))
	for _, h := range order {
		entities = append(entities, *byHandle[h])
	}
	return doc.MdibVersion, doc.SequenceID, entities, nil
}
