package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const petstore = `
openapi: 3.0.1
info:
  title: petstore
  version: "1"
paths:
  /pets/{id}:
    parameters:
      - name: id
        in: path
        required: true
        schema:
          type: integer
    get:
      parameters:
        - $ref: '#/components/parameters/Verbose'
        - name: X-Trace
          in: header
          schema:
            type: string
      responses:
        "200":
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        "404": {}
    put:
      operationId: updatePet
      requestBody:
        $ref: '#/components/requestBodies/PetBody'
      responses:
        "200":
          description: ok
components:
  parameters:
    Verbose:
      name: verbose
      in: query
      schema:
        type: boolean
  requestBodies:
    PetBody:
      content:
        application/json:
          schema:
            $ref: '#/components/schemas/Pet'
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        name:
          type: string
        age:
          type: integer
        color:
          type: string
`

func TestParseResolvesReferences(t *testing.T) {
	doc, err := Parse([]byte(petstore))
	require.NoError(t, err)

	item := doc.Paths["/pets/{id}"]
	require.NotNil(t, item)

	get := item.Get
	require.Equal(t, "get_pets_id_", get.OperationID)
	require.Len(t, get.Parameters, 3, "path-level id + verbose + header")
	require.Equal(t, "id", get.Parameters[0].Name)
	require.Equal(t, "verbose", get.Parameters[1].Name)
	require.True(t, get.Parameters[2].Located("HEADER"))
	require.Equal(t, []string{"200", "404"}, get.ResponseCodes())
	require.NotNil(t, get.Responses["404"])

	put := item.Put
	require.Equal(t, "updatePet", put.OperationID)
	require.NotNil(t, put.RequestBody.Content[MediaTypeJSON])
	require.Equal(t, "Pet", RefName(put.RequestBody.Content[MediaTypeJSON].Schema.Ref))

	require.Len(t, item.Operations(), 2)
}

func TestSchemaPropertyOrderPreserved(t *testing.T) {
	doc, err := Parse([]byte(petstore))
	require.NoError(t, err)

	pet := doc.Components.Schemas["Pet"]
	require.Equal(t, []string{"name", "age", "color"}, pet.PropertyNames())
	require.True(t, pet.IsRequired("name"))
	require.False(t, pet.IsRequired("age"))
}

func TestParseJSONContract(t *testing.T) {
	data := `{"openapi":"3.0.0","paths":{"/a":{"post":{"requestBody":{"content":{"*/*":{"schema":{"type":"object","properties":{"z":{"type":"string"},"a":{"type":"string"}}}}}},"responses":{"201":{}}}}}}`
	doc, err := Parse([]byte(data))
	require.NoError(t, err)

	schema := doc.Paths["/a"].Post.RequestBody.Content[MediaTypeAny].Schema
	require.Equal(t, []string{"z", "a"}, schema.PropertyNames())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`openapi: 3.0.0`))
	require.ErrorContains(t, err, "no paths")

	_, err = Parse([]byte(`
paths:
  /a:
    get:
      parameters:
        - $ref: '#/components/parameters/Missing'
`))
	require.ErrorContains(t, err, "unresolved parameter")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore), 0o600))

	doc, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "petstore", doc.Info.Title)
	require.Equal(t, []string{"/pets/{id}"}, doc.SortedPaths())
}

func TestSchemasWithLeavesReceiverUntouched(t *testing.T) {
	base := Schemas{"A": &Schema{Type: TypeString}}
	extended := base.With("B", NewObjectSchema())

	require.Len(t, base, 1)
	require.Len(t, extended, 2)
	require.Same(t, base["A"], extended["A"])
}

func TestAddPropertyKeepsOrder(t *testing.T) {
	s := NewObjectSchema()
	s.AddProperty("b", &Schema{Type: TypeString})
	s.AddProperty("a", &Schema{Type: TypeString})
	s.AddProperty("b", &Schema{Type: TypeInteger})

	require.Equal(t, []string{"b", "a"}, s.PropertyNames())
	require.Equal(t, TypeInteger, s.Properties["b"].Type)
}
