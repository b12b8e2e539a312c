package sample

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/y0f/apifuzz/internal/contract"
)

const composedContract = `
openapi: 3.0.0
paths:
  /x:
    get:
      responses:
        "200": {}
components:
  schemas:
    Base:
      type: object
      properties:
        id:
          type: integer
          minimum: 10
    Named:
      allOf:
        - $ref: '#/components/schemas/Base'
        - type: object
          properties:
            name:
              type: string
              format: email
    Cat:
      type: object
      properties:
        petType:
          type: string
        meow:
          type: boolean
    Dog:
      type: object
      properties:
        petType:
          type: string
        bark:
          type: boolean
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
      discriminator:
        propertyName: petType
    Owner:
      type: object
      properties:
        name:
          type: string
          example: Jane
        pet:
          $ref: '#/components/schemas/Pet'
        tags:
          type: array
          items:
            type: string
            enum: [a, b]
    Node:
      type: object
      properties:
        value:
          type: number
        next:
          $ref: '#/components/schemas/Node'
`

func loadSchemas(t *testing.T) contract.Schemas {
	t.Helper()
	doc, err := contract.Parse([]byte(composedContract))
	require.NoError(t, err)
	return doc.Components.Schemas
}

func generate(t *testing.T, g *Generator, name string) string {
	t.Helper()
	examples, err := g.Generate(name)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	require.True(t, json.Valid([]byte(examples[0].Example)), examples[0].Example)
	return examples[0].Example
}

func TestGenerateAllOfMarkers(t *testing.T) {
	g := New(loadSchemas(t))
	require.Equal(t, `{"ALL_OF":{"id":10,"name":"apifuzz@example.com"}}`, generate(t, g, "Named"))
}

func TestGenerateOneOfMarkersAndDiscriminators(t *testing.T) {
	g := New(loadSchemas(t))
	got := generate(t, g, "Owner")

	require.Equal(t, `{"name":"Jane",`+
		`"petONE_OF#/components/schemas/Cat":{"petType":"string","meow":true},`+
		`"petONE_OF#/components/schemas/Dog":{"petType":"string","bark":true},`+
		`"tags":["a"]}`, got)
	require.Equal(t, []string{"pet#petType"}, g.Discriminators())

	types := g.PropertyTypes()
	require.Equal(t, "string", types["name"])
	require.Equal(t, "array", types["tags"])
	require.Equal(t, "object", types["pet"])
}

func TestGenerateRootComposition(t *testing.T) {
	g := New(loadSchemas(t))
	got := generate(t, g, "Pet")
	require.Contains(t, got, `"ONE_OF#/components/schemas/Cat"`)
	require.Contains(t, g.Discriminators(), "#petType")
}

func TestGenerateRecursiveSchemaTerminates(t *testing.T) {
	g := New(loadSchemas(t))
	require.Equal(t, `{"value":1.5,"next":{}}`, generate(t, g, "Node"))
}

func TestGenerateUnknownSchema(t *testing.T) {
	_, err := New(contract.Schemas{}).Generate("Nope")
	require.ErrorContains(t, err, "not found")
}

func TestPrimitiveBounds(t *testing.T) {
	min := 5
	max := 3
	lo := -4.0

	require.Equal(t, `"stringa"`, primitive(&contract.Schema{Type: "string", MinLength: intPtr(7)}).String())
	require.Equal(t, `"str"`, primitive(&contract.Schema{Type: "string", MaxLength: &max}).String())
	require.Equal(t, `"strin"`, primitive(&contract.Schema{Type: "string", MaxLength: &min}).String())
	require.Equal(t, `-4`, primitive(&contract.Schema{Type: "integer", Minimum: &lo}).String())
	require.Equal(t, `-4`, primitive(&contract.Schema{Type: "number", Maximum: &lo}).String())
	require.Equal(t, `true`, primitive(&contract.Schema{Type: "boolean"}).String())
	require.Equal(t, `7`, primitive(&contract.Schema{Type: "integer", Example: 7}).String())
}

func intPtr(i int) *int { return &i }
