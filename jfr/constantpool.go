package jfr

// ClassRef is the constant-pool content for a java.lang.Class entry:
// just the symbol id of its name, resolved lazily through the
// symbols dictionary (spec §3).
type ClassRef struct {
	NameSymbolID uint64
}

// MethodRef is the constant-pool content for a jdk.types.Method
// entry.
type MethodRef struct {
	ClassID           uint64
	NameSymbolID      uint64
	SignatureSymbolID uint64
}

// StackTrace is the constant-pool content for a jdk.types.StackTrace
// entry: parallel method-id and frame-type sequences, deepest frame
// first (spec §3, invariant "len(methods) == len(frameTypes)").
type StackTrace struct {
	Methods    []uint64
	FrameTypes []byte
}

// refDicts holds every reference dictionary a Reader builds while
// indexing chunks (spec §3 "Reference dictionaries").
type refDicts struct {
	threads     Dictionary[string]
	classes     Dictionary[ClassRef]
	methods     Dictionary[MethodRef]
	symbols     Dictionary[[]byte]
	stackTraces Dictionary[StackTrace]
	frameTypes  map[int32]string
	threadStates map[int32]string
}

func newRefDicts() *refDicts {
	return &refDicts{
		frameTypes:   make(map[int32]string),
		threadStates: make(map[int32]string),
	}
}

// parsePools walks the linked list of constant-pool blocks starting
// at poolStart, populating dicts and consulting reg to resolve each
// block's declared types.
//
// Grounded on perffile/records.go's Records.Next, whose "read a fixed
// header, switch on a type tag, dispatch to a per-type parser sharing
// one bufDecoder" shape is the model for the per-entry dispatch here;
// the block-linked-list chaining via delta has no teacher analog and
// comes directly from spec §4.4.
func parsePools(c *Cursor, poolStart int64, reg *typeRegistry, dicts *refDicts) error {
	blockStart := poolStart
	for {
		c.SetPos(blockStart)

		var delta int64
		for i := 0; i < 5; i++ {
			v, err := c.Varlong()
			if err != nil {
				return err
			}
			if i == 4 {
				delta = int64(v)
			}
		}

		if _, err := c.Varint(); err != nil { // discarded
			return err
		}

		poolCount, err := c.Varint()
		if err != nil {
			return err
		}
		for i := uint32(0); i < poolCount; i++ {
			typeID, err := c.Varint()
			if err != nil {
				return err
			}
			cl, ok := reg.types[int32(typeID)]
			if !ok {
				return invalidFormatf("constant pool references unknown type id %d", typeID)
			}
			if err := parsePoolBody(c, cl, reg, dicts); err != nil {
				return err
			}
		}

		if delta == 0 {
			return nil
		}
		blockStart += delta
	}
}

func parsePoolBody(c *Cursor, cl *JfrClass, reg *typeRegistry, dicts *refDicts) error {
	switch cl.Name {
	case "jdk.types.ChunkHeader":
		if err := c.require(int64(chunkHeaderSize + 3)); err != nil {
			return err
		}
		c.SetPos(c.Pos() + int64(chunkHeaderSize+3))
		return nil
	case "java.lang.Thread":
		return parseThreadPool(c, cl, dicts)
	case "java.lang.Class":
		return parseClassPool(c, cl, dicts)
	case "jdk.types.Symbol":
		return parseSymbolPool(c, dicts)
	case "jdk.types.Method":
		return parseMethodPool(c, dicts)
	case "jdk.types.StackTrace":
		return parseStackTracePool(c, dicts)
	case "jdk.types.FrameType":
		return parseLabelMapPool(c, dicts.frameTypes)
	case "jdk.types.ThreadState":
		return parseLabelMapPool(c, dicts.threadStates)
	default:
		return parseGenericPool(c, cl, reg)
	}
}

func parseThreadPool(c *Cursor, cl *JfrClass, dicts *refDicts) error {
	count, err := c.Varint()
	if err != nil {
		return err
	}
	_, hasGroup := cl.FieldByName("group")
	for i := dicts.threads.Preallocate(int(count)); i > 0; i-- {
		id, err := c.Varlong()
		if err != nil {
			return err
		}
		osName, _, err := c.String()
		if err != nil {
			return err
		}
		if _, err := c.Varint(); err != nil { // osThreadId, discarded
			return err
		}
		javaName, javaOK, err := c.String()
		if err != nil {
			return err
		}
		if _, err := c.Varlong(); err != nil { // javaThreadId, discarded
			return err
		}
		if hasGroup {
			if _, err := c.Varlong(); err != nil {
				return err
			}
		}
		display := osName
		if javaOK {
			display = javaName
		}
		dicts.threads.Set(id, display)
	}
	return nil
}

func parseClassPool(c *Cursor, cl *JfrClass, dicts *refDicts) error {
	count, err := c.Varint()
	if err != nil {
		return err
	}
	_, hasHidden := cl.FieldByName("hidden")
	for i := dicts.classes.Preallocate(int(count)); i > 0; i-- {
		id, err := c.Varlong()
		if err != nil {
			return err
		}
		if _, err := c.Varlong(); err != nil { // loader, discarded
			return err
		}
		name, err := c.Varlong()
		if err != nil {
			return err
		}
		if _, err := c.Varlong(); err != nil { // pkg, discarded
			return err
		}
		if _, err := c.Varint(); err != nil { // modifiers, discarded
			return err
		}
		if hasHidden {
			if _, err := c.Varint(); err != nil {
				return err
			}
		}
		dicts.classes.Set(id, ClassRef{NameSymbolID: name})
	}
	return nil
}

func parseSymbolPool(c *Cursor, dicts *refDicts) error {
	count, err := c.Varint()
	if err != nil {
		return err
	}
	for i := dicts.symbols.Preallocate(int(count)); i > 0; i-- {
		id, err := c.Varlong()
		if err != nil {
			return err
		}
		b, err := c.symbolBytes()
		if err != nil {
			return err
		}
		dicts.symbols.Set(id, b)
	}
	return nil
}

func parseMethodPool(c *Cursor, dicts *refDicts) error {
	count, err := c.Varint()
	if err != nil {
		return err
	}
	for i := dicts.methods.Preallocate(int(count)); i > 0; i-- {
		id, err := c.Varlong()
		if err != nil {
			return err
		}
		clsID, err := c.Varlong()
		if err != nil {
			return err
		}
		nameID, err := c.Varlong()
		if err != nil {
			return err
		}
		sigID, err := c.Varlong()
		if err != nil {
			return err
		}
		if _, err := c.Varint(); err != nil { // modifiers, discarded
			return err
		}
		if _, err := c.Varint(); err != nil { // hidden, discarded
			return err
		}
		dicts.methods.Set(id, MethodRef{ClassID: clsID, NameSymbolID: nameID, SignatureSymbolID: sigID})
	}
	return nil
}

func parseStackTracePool(c *Cursor, dicts *refDicts) error {
	count, err := c.Varint()
	if err != nil {
		return err
	}
	for i := dicts.stackTraces.Preallocate(int(count)); i > 0; i-- {
		id, err := c.Varlong()
		if err != nil {
			return err
		}
		if _, err := c.Varint(); err != nil { // truncated, discarded
			return err
		}
		depth, err := c.Varint()
		if err != nil {
			return err
		}
		methods := make([]uint64, depth)
		frameTypes := make([]byte, depth)
		for j := uint32(0); j < depth; j++ {
			method, err := c.Varlong()
			if err != nil {
				return err
			}
			if _, err := c.Varint(); err != nil { // line, discarded
				return err
			}
			if _, err := c.Varint(); err != nil { // bci, discarded
				return err
			}
			ft, err := c.u8()
			if err != nil {
				return err
			}
			methods[j] = method
			frameTypes[j] = ft
		}
		dicts.stackTraces.Set(id, StackTrace{Methods: methods, FrameTypes: frameTypes})
	}
	return nil
}

func parseLabelMapPool(c *Cursor, target map[int32]string) error {
	count, err := c.Varint()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		key, err := c.Varint()
		if err != nil {
			return err
		}
		value, _, err := c.String()
		if err != nil {
			return err
		}
		target[int32(key)] = value
	}
	return nil
}

// parseGenericPool decodes a pool section for a type with no
// hand-written decoder, driven entirely by its field schema (spec
// §4.4 "Generic pool reader"). Each field reads as a varlong if it's
// a constant-pool reference or anything other than a string, and as a
// string otherwise — this is enough to keep the cursor synchronized
// without the reader needing to understand the type's meaning.
func parseGenericPool(c *Cursor, cl *JfrClass, reg *typeRegistry) error {
	stringTypeID, hasStringType := reg.typeIDByName("java.lang.String")
	numeric := make([]bool, len(cl.Fields))
	for i, f := range cl.Fields {
		isStringType := hasStringType && f.Type == stringTypeID
		numeric[i] = f.ConstantPool || !isStringType
	}

	count, err := c.Varint()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := c.Varlong(); err != nil { // id, discarded
			return err
		}
		for _, isNumeric := range numeric {
			if isNumeric {
				if _, err := c.Varlong(); err != nil {
					return err
				}
			} else {
				if _, _, err := c.String(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
