// Package schema loads the archetype property definitions from embedded JSON
// files. Every field a proxy can address is declared here: its type, default,
// enum items and whether it is driven (recomputed by animation and therefore
// never trusted from cache). Keeping the driven policy in the schema, rather
// than at call sites, is deliberate.
package schema

import (
	"embed"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/rigbridge/rigbridge/modules/types"
)

//go:embed resources/*.json
var resources embed.FS

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type FieldType uint8

const (
	TypeBool FieldType = iota
	TypeInt
	TypeFloat
	TypeVector3
	TypeColor
	TypeMatrix
	TypeString
	TypeEnum
	TypeRef
	TypeRefList
	TypeEntity
	TypeEntityList
)

func (t FieldType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeVector3:
		return "float[3]"
	case TypeColor:
		return "color"
	case TypeMatrix:
		return "matrix"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	case TypeRef:
		return "pointer"
	case TypeRefList:
		return "pointer[]"
	case TypeEntity:
		return "entity"
	case TypeEntityList:
		return "entity[]"
	}
	return "unknown"
}

type Field struct {
	Name  string
	Label string
	Help  string
	Type  FieldType

	// Default is the concrete default value (types package types for
	// vectors and matrices).
	Default any

	// Items are the labels of an enum field, in index order.
	Items []string

	// Driven fields are recomputed externally every evaluation and must be
	// re-fetched on every read regardless of dirty state.
	Driven bool

	Hidden   bool
	Internal bool
}

// IndexOf converts an enum label to its index, -1 when unknown.
func (f *Field) IndexOf(label string) int {
	for i, item := range f.Items {
		if item == label {
			return i
		}
	}
	return -1
}

type Definition struct {
	Type   string
	Fields map[string]*Field
	Order  []string
}

var definitions = make(map[string]*Definition)

type rawFile struct {
	Type     string              `json:"type"`
	Property map[string]rawField `json:"property"`
}

type rawField struct {
	Label   string     `json:"label"`
	Help    string     `json:"help"`
	Options rawOptions `json:"options"`
	Value   rawValue   `json:"value"`
}

type rawOptions struct {
	Hidden   bool `json:"hidden"`
	Internal bool `json:"internal"`
	Animated bool `json:"animated"`
}

type rawValue struct {
	Type    string   `json:"type"`
	Default any      `json:"default"`
	Items   []string `json:"items"`
}

func init() {
	entries, err := resources.ReadDir("resources")
	if err != nil {
		panic(err)
	}
	for _, entry := range entries {
		data, err := resources.ReadFile("resources/" + entry.Name())
		if err != nil {
			panic(err)
		}
		var raw rawFile
		if err := json.Unmarshal(data, &raw); err != nil {
			panic(fmt.Sprintf("schema %s: %v", entry.Name(), err))
		}
		def := &Definition{
			Type:   raw.Type,
			Fields: make(map[string]*Field),
		}
		for name, rf := range raw.Property {
			field, err := buildField(name, rf)
			if err != nil {
				panic(fmt.Sprintf("schema %s.%s: %v", raw.Type, name, err))
			}
			def.Fields[name] = field
			def.Order = append(def.Order, name)
		}
		definitions[raw.Type] = def
	}
}

func buildField(name string, rf rawField) (*Field, error) {
	f := &Field{
		Name:     name,
		Label:    rf.Label,
		Help:     rf.Help,
		Items:    rf.Value.Items,
		Driven:   rf.Options.Animated,
		Hidden:   rf.Options.Hidden,
		Internal: rf.Options.Internal,
	}

	switch rf.Value.Type {
	case "bool":
		f.Type = TypeBool
		f.Default = false
		if b, ok := rf.Value.Default.(bool); ok {
			f.Default = b
		}
	case "int", "u_int", "u_short":
		f.Type = TypeInt
		f.Default = 0
		if n, ok := rf.Value.Default.(float64); ok {
			f.Default = int(n)
		}
	case "float", "double":
		f.Type = TypeFloat
		f.Default = 0.0
		if n, ok := rf.Value.Default.(float64); ok {
			f.Default = n
		}
	case "float[3]", "double[3]", "angle[3]", "euler":
		f.Type = TypeVector3
		f.Default = vectorDefault(rf.Value.Default)
	case "color":
		f.Type = TypeColor
		v := vectorDefault(rf.Value.Default)
		f.Default = types.Color{v[0], v[1], v[2]}
	case "matrix":
		f.Type = TypeMatrix
		f.Default = types.IdentityMatrix()
	case "string":
		f.Type = TypeString
		f.Default = ""
		if s, ok := rf.Value.Default.(string); ok {
			f.Default = s
		}
	case "enum":
		f.Type = TypeEnum
		if len(f.Items) == 0 {
			return nil, fmt.Errorf("enum without items")
		}
		f.Default = 0
		if n, ok := rf.Value.Default.(float64); ok {
			f.Default = int(n)
		}
	case "pointer":
		f.Type = TypeRef
		f.Default = nil
	case "pointer[]":
		f.Type = TypeRefList
		f.Default = nil
	case "entity":
		f.Type = TypeEntity
		f.Default = nil
	case "entity[]":
		f.Type = TypeEntityList
		f.Default = nil
	default:
		return nil, fmt.Errorf("unsupported type %q", rf.Value.Type)
	}
	return f, nil
}

func vectorDefault(raw any) types.Vector3 {
	var v types.Vector3
	if arr, ok := raw.([]any); ok {
		for i := 0; i < len(arr) && i < 3; i++ {
			if n, ok := arr[i].(float64); ok {
				v[i] = n
			}
		}
	}
	return v
}

// Get returns the definition of an archetype type.
func Get(typ string) (*Definition, bool) {
	def, ok := definitions[typ]
	return def, ok
}

// Lookup returns a single field definition.
func Lookup(typ, field string) (*Field, bool) {
	def, ok := definitions[typ]
	if !ok {
		return nil, false
	}
	f, ok := def.Fields[field]
	return f, ok
}

// Types lists all known archetype type names.
func Types() []string {
	result := make([]string, 0, len(definitions))
	for typ := range definitions {
		result = append(result, typ)
	}
	return result
}
