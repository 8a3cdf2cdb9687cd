package binstream

import (
	"encoding"
	"encoding/xml"
	"reflect"
	"sync"
)

// objectSurrogatePairs is the read side of the symmetric swap
// mechanism: RegisterSurrogate's declared object type maps 1:1 to
// the surrogate type actually written to the wire, so a reader that
// expects an object type can recognize it needs to decode a surrogate
// instance instead and convert it back, before any of the object
// type's own shape is consulted. Kept distinct from swapTable (used
// on the write side only) because this lookup is an exact 1:1
// pairing, not an assignability
// search.
type objectSurrogatePairs struct {
	mu   sync.RWMutex
	pair map[reflect.Type]surrogatePair
}

type surrogatePair struct {
	surrogateType reflect.Type
	fromSurrogate func(interface{}) (interface{}, error)
}

var globalSurrogatePairs = &objectSurrogatePairs{pair: make(map[reflect.Type]surrogatePair)}

func (p *objectSurrogatePairs) register(objectType, surrogateType reflect.Type, fromSurrogate func(interface{}) (interface{}, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pair[objectType] = surrogatePair{surrogateType: surrogateType, fromSurrogate: fromSurrogate}
}

func (p *objectSurrogatePairs) lookup(objectType reflect.Type) (surrogatePair, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pr, ok := p.pair[objectType]
	return pr, ok
}

// The built-in capability-tag surrogates gated by
// SupportForISerializable/SupportForIXmlSerializable, translated to
// their nearest Go idiom: encoding.TextMarshaler/TextUnmarshaler and
// encoding/xml's Marshaler/Unmarshaler. Unlike RegisterSurrogate's
// exact-type pairs, these match any type implementing the interface,
// so they are resolved by interface assignability rather than a map
// lookup, and gated by a Settings flag rather than registration.
var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	xmlMarshalerType    = reflect.TypeOf((*xml.Marshaler)(nil)).Elem()
	xmlUnmarshalerType  = reflect.TypeOf((*xml.Unmarshaler)(nil)).Elem()
)

func isTextSerializable(typ reflect.Type) bool {
	return typ.Implements(textMarshalerType) && reflect.PtrTo(typ).Implements(textUnmarshalerType)
}

func isXMLSerializable(typ reflect.Type) bool {
	return typ.Implements(xmlMarshalerType) && reflect.PtrTo(typ).Implements(xmlUnmarshalerType)
}

// writeCapabilitySurrogate converts v through whichever capability-tag
// surrogate Settings enables and v's type implements, mirroring
// writeValue's explicit-pair surrogate check but for interface-based,
// settings-gated detection instead of a registered declared type.
func writeCapabilitySurrogate(settings Settings, v reflect.Value) (replacement interface{}, handled bool, err error) {
	typ := v.Type()
	if settings.SupportForISerializable && isTextSerializable(typ) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, true, err
		}
		return string(b), true, nil
	}
	if settings.SupportForIXmlSerializable && isXMLSerializable(typ) {
		b, err := xml.Marshal(v.Interface())
		if err != nil {
			return nil, true, err
		}
		return b, true, nil
	}
	return nil, false, nil
}

// resolveReadSurrogate returns the wire-level type to decode and the
// conversion back to expected, if expected is either an explicitly
// registered surrogate pair or qualifies for a settings-gated
// capability surrogate.
func resolveReadSurrogate(settings Settings, expected reflect.Type) (wireType reflect.Type, convert func(interface{}) (interface{}, error), ok bool) {
	if pr, ok := globalSurrogatePairs.lookup(expected); ok {
		return pr.surrogateType, pr.fromSurrogate, true
	}
	if settings.SupportForISerializable && isTextSerializable(expected) {
		return reflect.TypeOf(""), func(raw interface{}) (interface{}, error) {
			target := reflect.New(expected)
			if err := target.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw.(string))); err != nil {
				return nil, err
			}
			return target.Elem().Interface(), nil
		}, true
	}
	if settings.SupportForIXmlSerializable && isXMLSerializable(expected) {
		return reflect.TypeOf([]byte(nil)), func(raw interface{}) (interface{}, error) {
			target := reflect.New(expected)
			if err := xml.Unmarshal(raw.([]byte), target.Interface()); err != nil {
				return nil, err
			}
			return target.Elem().Interface(), nil
		}, true
	}
	return nil, nil, false
}
