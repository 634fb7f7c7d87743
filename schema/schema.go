// Package schema validates the structure of signed documents.
package schema

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/nasdf/quorum/fault"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"
)

var (
	//go:embed schema.graphql
	schemaSource string
	// documentSchema is parsed once and only read afterwards.
	documentSchema = gqlparser.MustLoadSchema(&ast.Source{
		Name:  "schema.graphql",
		Input: schemaSource,
	})
)

const variableName = "document"

// Validate checks that value has the shape of the named document type.
//
// Failures are fault.SchemaError with the path of the offending field.
func Validate(typeName string, value map[string]any) error {
	def := documentSchema.Types[typeName]
	if def == nil || def.Kind != ast.InputObject {
		return fault.New(fault.SchemaError, "", "unknown document type %q", typeName)
	}
	op := &ast.OperationDefinition{
		Operation: ast.Query,
		VariableDefinitions: ast.VariableDefinitionList{{
			Variable:   variableName,
			Type:       ast.NonNullNamedType(typeName, nil),
			Definition: def,
		}},
	}
	_, err := validator.VariableValues(documentSchema, op, map[string]any{variableName: value})
	if err == nil {
		return nil
	}
	var gqlErr *gqlerror.Error
	if !errors.As(err, &gqlErr) {
		return fault.Wrap(fault.SchemaError, "", err)
	}
	return fault.New(fault.SchemaError, documentPath(gqlErr.Path), "%s", gqlErr.Message)
}

// documentPath strips the variable prefix from a validation path.
func documentPath(path ast.Path) string {
	if len(path) <= 2 {
		return ""
	}
	rest := path[2:]
	if _, ok := rest[0].(ast.PathIndex); ok {
		return fmt.Sprint(rest)
	}
	return rest.String()
}
