package jfr

import "strconv"

// Element is a node in the recursive metadata element tree decoded
// from a chunk's metadata section (spec §4.3). Parent-child
// composition is upward population: addChild lets a parent index a
// child the moment it's attached, rather than requiring a second pass
// over the finished tree.
//
// Grounded on spec §9 "Parent/child construction" — modeled as a
// small capability ("can accept a child") rather than a run-time type
// map, the way perffile/records.go dispatches on a fixed tag instead
// of reflection.
type Element interface {
	addChild(child Element)
}

type baseElement struct {
	children []Element
}

func (b *baseElement) addChild(c Element) {
	b.children = append(b.children, c)
}

// genericElement is any metadata element that isn't a class or field
// — JFR's metadata tree has containers (the root, "metadata",
// "region" and similar) this reader never needs to interpret, so they
// decode into an opaque node that only exists to keep the tree
// well-formed.
type genericElement struct {
	baseElement
	name string
}

// JfrField describes one field of a JfrClass: its name, the type id
// of its declared type, and whether the on-disk value is an inline
// value or a 64-bit reference into a constant pool.
type JfrField struct {
	baseElement
	Name         string
	Type         int32
	ConstantPool bool
}

// JfrClass describes one type declared by a chunk's metadata: its
// numeric id, fully-qualified and simple names, optional supertype
// name, and its fields in declaration order (field order is
// semantically significant — see the generic constant-pool reader in
// constantpool.go).
type JfrClass struct {
	baseElement
	ID           int32
	Name         string
	SimpleName   string
	SuperType    string
	HasSuperType bool
	Fields       []*JfrField
}

// addChild additionally indexes JfrField children into Fields,
// extending the default "just store the child" behavior.
func (cl *JfrClass) addChild(c Element) {
	cl.baseElement.addChild(c)
	if f, ok := c.(*JfrField); ok {
		cl.Fields = append(cl.Fields, f)
	}
}

// FieldByName returns the field with the given name, if any.
func (cl *JfrClass) FieldByName(name string) (*JfrField, bool) {
	for _, f := range cl.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

func simpleNameOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

// typeRegistry accumulates the type/field schema across every chunk
// indexed by a Reader (spec §3 "Type registry (per reader, accumulated
// across chunks)").
type typeRegistry struct {
	// types maps a type id to its JfrClass, but only for classes
	// with no superType attribute — top-level types, used to
	// dispatch constant-pool sections (spec §3).
	types map[int32]*JfrClass

	// typesByName maps a fully-qualified type name to its
	// JfrClass. Last writer wins across chunks.
	typesByName map[string]*JfrClass
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		types:       make(map[int32]*JfrClass),
		typesByName: make(map[string]*JfrClass),
	}
}

func (r *typeRegistry) typeIDByName(name string) (int32, bool) {
	cl, ok := r.typesByName[name]
	if !ok {
		return 0, false
	}
	return cl.ID, true
}

// parseMetadata decodes one chunk's metadata section starting at the
// cursor's current position and merges any classes it declares into
// reg.
func parseMetadata(c *Cursor, reg *typeRegistry) error {
	// Five discarded header/timestamp values (spec §4.3, §9 open
	// question (b)): the event-kind header and metadata
	// timestamps, whose meaning isn't needed to parse bodies.
	for i := 0; i < 5; i++ {
		if _, err := c.Varlong(); err != nil {
			return err
		}
	}

	n, err := c.Varint()
	if err != nil {
		return err
	}
	strings := make([]string, n)
	for i := range strings {
		s, _, err := c.String()
		if err != nil {
			return err
		}
		strings[i] = s
	}

	_, err = readElement(c, strings, reg)
	return err
}

func readElement(c *Cursor, strings []string, reg *typeRegistry) (Element, error) {
	nameIdx, err := c.Varint()
	if err != nil {
		return nil, err
	}
	if int(nameIdx) >= len(strings) {
		return nil, invalidFormat("metadata element name index out of range")
	}
	name := strings[nameIdx]

	attrCount, err := c.Varint()
	if err != nil {
		return nil, err
	}
	attrs := make(map[string]string, attrCount)
	for i := uint32(0); i < attrCount; i++ {
		kIdx, err := c.Varint()
		if err != nil {
			return nil, err
		}
		vIdx, err := c.Varint()
		if err != nil {
			return nil, err
		}
		if int(kIdx) >= len(strings) || int(vIdx) >= len(strings) {
			return nil, invalidFormat("metadata attribute index out of range")
		}
		attrs[strings[kIdx]] = strings[vIdx]
	}

	var el Element
	switch name {
	case "class":
		cl := &JfrClass{
			Name: attrs["name"],
		}
		if id, err := strconv.Atoi(attrs["id"]); err == nil {
			cl.ID = int32(id)
		}
		cl.SimpleName = simpleNameOf(cl.Name)
		if st, ok := attrs["superType"]; ok {
			cl.SuperType = st
			cl.HasSuperType = true
		}
		if !cl.HasSuperType {
			reg.types[cl.ID] = cl
		}
		reg.typesByName[cl.Name] = cl
		el = cl
	case "field":
		f := &JfrField{Name: attrs["name"]}
		if t, err := strconv.Atoi(attrs["type"]); err == nil {
			f.Type = int32(t)
		}
		f.ConstantPool = attrs["constantPool"] == "true"
		el = f
	default:
		el = &genericElement{name: name}
	}

	childCount, err := c.Varint()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < childCount; i++ {
		child, err := readElement(c, strings, reg)
		if err != nil {
			return nil, err
		}
		el.addChild(child)
	}

	return el, nil
}
