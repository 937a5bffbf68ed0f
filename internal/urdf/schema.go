package urdf

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"github.com/jacoelho/xsd"
)

//go:embed urdf.xsd
var schemaXSD []byte

var (
	schemaOnce sync.Once
	schema     *xsd.Engine
	schemaErr  error
)

// ValidateSchema checks a URDF document against the embedded schema. The
// schema is compiled on first use and shared afterwards.
func ValidateSchema(r io.Reader) error {
	schemaOnce.Do(func() {
		schema, schemaErr = xsd.Compile(xsd.Reader("urdf.xsd", bytes.NewReader(schemaXSD)))
	})
	if schemaErr != nil {
		return fmt.Errorf("urdf: schema: %w", schemaErr)
	}
	if err := schema.Validate(r); err != nil {
		return fmt.Errorf("urdf: schema validation: %w: %w", ErrInvalid, err)
	}
	return nil
}
