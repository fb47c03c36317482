package remote

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	nodeSchema *jsonschema.Schema
	treeSchema *jsonschema.Schema
	schemaErr  error
)

func loadSchemas() {
	c := jsonschema.NewCompiler()
	for _, name := range []string{"node.json", "tree.json"} {
		raw, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			schemaErr = err
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			schemaErr = fmt.Errorf("parse %s: %w", name, err)
			return
		}
		if err := c.AddResource(name, doc); err != nil {
			schemaErr = fmt.Errorf("add %s: %w", name, err)
			return
		}
	}
	if nodeSchema, schemaErr = c.Compile("node.json"); schemaErr != nil {
		return
	}
	treeSchema, schemaErr = c.Compile("tree.json")
}

// validateNode checks a single node payload.
func validateNode(payload []byte) error {
	return validate(payload, func() *jsonschema.Schema { return nodeSchema })
}

// validateTree checks a forest payload.
func validateTree(payload []byte) error {
	return validate(payload, func() *jsonschema.Schema { return treeSchema })
}

func validate(payload []byte, pick func() *jsonschema.Schema) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return fmt.Errorf("compile schema: %w", schemaErr)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return err
	}
	return pick().Validate(inst)
}
