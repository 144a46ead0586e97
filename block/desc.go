// Package block implements the schema-driven parser for the tagged block
// structure of an MDF v4 file.
//
// Each supported block tag has a declarative schema embedded at build time:
// the ordered link names and the ordered data fields with their primitive
// types and fixed sizes. A parse reads the 24-byte common header, the link
// vector, and the data fields in schema order, then binds logical link names
// to offsets (including the variable tails of CN, CC and DL blocks).
package block

import (
	"embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/asamkit/mf4/errs"
)

//go:embed blockdesc/*.toml
var schemaFS embed.FS

// FieldType is the primitive type of a schema data field.
type FieldType string

const (
	TypeChar FieldType = "CHAR"
	TypeByte FieldType = "BYTE"
	TypeU8   FieldType = "UINT8"
	TypeU16  FieldType = "UINT16"
	TypeU32  FieldType = "UINT32"
	TypeU64  FieldType = "UINT64"
	TypeI16  FieldType = "INT16"
	TypeI32  FieldType = "INT32"
	TypeI64  FieldType = "INT64"
	TypeF64  FieldType = "REAL"
)

// elemWidth returns the byte width of one element, 1 for CHAR/BYTE.
func (t FieldType) elemWidth() int {
	switch t {
	case TypeU16, TypeI16:
		return 2
	case TypeU32, TypeI32:
		return 4
	case TypeU64, TypeI64, TypeF64:
		return 8
	default:
		return 1
	}
}

// Field is one data field of a block schema. Size is the element count; zero
// means the field consumes the remainder of the block payload.
type Field struct {
	Name string    `toml:"name"`
	Type FieldType `toml:"type"`
	Size int       `toml:"size"`
}

// Desc is the declarative description of one block tag.
type Desc struct {
	ID    string   `toml:"id"`
	Links []string `toml:"link"`
	Data  []Field  `toml:"data"`
}

// CheckID reports whether the 4-byte header tag matches this schema.
func (d *Desc) CheckID(id []byte) bool {
	return string(id) == d.ID
}

var (
	descOnce sync.Once
	descMap  map[string]*Desc
	descErr  error
)

func loadDescs() {
	descMap = make(map[string]*Desc)
	entries, err := schemaFS.ReadDir("blockdesc")
	if err != nil {
		descErr = err
		return
	}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile("blockdesc/" + e.Name())
		if err != nil {
			descErr = err
			return
		}
		var d Desc
		if err := toml.Unmarshal(raw, &d); err != nil {
			descErr = fmt.Errorf("schema %s: %w", e.Name(), err)
			return
		}
		if len(d.ID) != 4 {
			descErr = fmt.Errorf("schema %s: bad id %q", e.Name(), d.ID)
			return
		}
		descMap[d.ID[2:]] = &d
	}
}

// Get returns the schema for a two-letter block tag such as "DG".
func Get(tag string) (*Desc, error) {
	descOnce.Do(loadDescs)
	if descErr != nil {
		return nil, descErr
	}
	d, ok := descMap[tag]
	if !ok {
		return nil, fmt.Errorf("tag %q: %w", tag, errs.ErrSchemaMissing)
	}

	return d, nil
}
