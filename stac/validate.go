package stac

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/aeronet.json
var extensionSchema string

// ErrInvalidItem is wrapped by Validate failures.
var ErrInvalidItem = errors.New("invalid STAC item")

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(extensionSchema))
	})
	return schema, schemaErr
}

// Validate checks an item that declares the AERONET extension against the
// extension JSON schema. Items that do not declare it only get the core
// field checks.
func Validate(it *Item) error {
	if it == nil {
		return fmt.Errorf("%w: nil item", ErrInvalidItem)
	}
	if it.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	if it.Type != "Feature" {
		return fmt.Errorf("%w: type %q", ErrInvalidItem, it.Type)
	}
	if _, ok := it.Properties["datetime"]; !ok {
		return fmt.Errorf("%w: %s: missing datetime", ErrInvalidItem, it.ID)
	}
	if !it.HasExtension(ExtensionSchemaURI) {
		return nil
	}

	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile extension schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(it))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrInvalidItem, it.ID, strings.Join(errs, "; "))
	}
	return nil
}
