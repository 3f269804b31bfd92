package mapping

import (
	"reflect"
	"strings"
	"time"
)

// ParameterMode is the direction of a bound parameter.
type ParameterMode int

const (
	ModeIn ParameterMode = iota
	ModeOut
	ModeInOut
)

func (m ParameterMode) String() string {
	switch m {
	case ModeOut:
		return "OUT"
	case ModeInOut:
		return "INOUT"
	default:
		return "IN"
	}
}

// ParameterMapping binds one placeholder of the SQL to a property of the parameter object.
type ParameterMapping struct {
	Property string
	Mode     ParameterMode
	// Type is the Go type of OUT values. Nil means any.
	Type reflect.Type
}

// IsOutput reports whether the mapping receives a value from the database.
func (p ParameterMapping) IsOutput() bool {
	return p.Mode == ModeOut || p.Mode == ModeInOut
}

// SQLSource compiles a statement for a parameter object.
type SQLSource interface {
	BoundSQL(param any) (*BoundSQL, error)
}

// BoundSQL is a compiled statement: literal SQL with placeholders and the mappings that fill them.
type BoundSQL struct {
	SQL               string
	ParameterMappings []ParameterMapping
	Parameter         any
	additional        map[string]any
}

// NewBoundSQL creates a compiled statement for param.
func NewBoundSQL(sql string, mappings []ParameterMapping, param any) *BoundSQL {
	return &BoundSQL{SQL: sql, ParameterMappings: mappings, Parameter: param}
}

// SetAdditionalParameter registers a value produced while compiling, such as a loop variable.
func (b *BoundSQL) SetAdditionalParameter(name string, value any) {
	if b.additional == nil {
		b.additional = make(map[string]any)
	}
	b.additional[name] = value
}

// HasAdditionalParameter reports whether the root of the property path was registered.
func (b *BoundSQL) HasAdditionalParameter(name string) bool {
	_, ok := b.additional[rootProperty(name)]
	return ok
}

// AdditionalParameter resolves a property path against the additional parameters.
func (b *BoundSQL) AdditionalParameter(name string) (any, error) {
	root := rootProperty(name)
	value, ok := b.additional[root]
	if !ok {
		return nil, nil
	}
	if root == name {
		return value, nil
	}
	return GetProperty(value, name[len(root)+1:])
}

// ParameterValue resolves the value of mapping: an additional parameter first, then the
// parameter object itself when it is a scalar, then a property of the parameter object.
func (b *BoundSQL) ParameterValue(mapping ParameterMapping) (any, error) {
	if b.HasAdditionalParameter(mapping.Property) {
		return b.AdditionalParameter(mapping.Property)
	}
	if b.Parameter == nil {
		return nil, nil
	}
	if IsScalar(b.Parameter) {
		return b.Parameter, nil
	}
	return GetProperty(b.Parameter, mapping.Property)
}

// StaticSQL is an SQLSource with fixed SQL text.
type StaticSQL struct {
	SQL      string
	Mappings []ParameterMapping
}

// NewStaticSQL creates a static source. Every property becomes an IN mapping.
func NewStaticSQL(sql string, properties ...string) *StaticSQL {
	mappings := make([]ParameterMapping, len(properties))
	for i, p := range properties {
		mappings[i] = ParameterMapping{Property: p}
	}
	return &StaticSQL{SQL: sql, Mappings: mappings}
}

func (s *StaticSQL) BoundSQL(param any) (*BoundSQL, error) {
	return NewBoundSQL(s.SQL, s.Mappings, param), nil
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// IsScalar reports whether v is bound as a whole rather than by property.
func IsScalar(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType || t == bytesType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func rootProperty(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
