package apiv1

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openapiFile = "../../../public/docs/v1/openapi.yml"

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openapiFile)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	return doc
}

func TestOpenAPI_DocumentsEveryRoute(t *testing.T) {
	doc := loadOpenAPI(t)

	app := fiber.New()
	RegisterHandlers(app.Group(basePath), NewAPIServer(Services{}, zerolog.Nop()), func(c *fiber.Ctx) error { return c.Next() })

	seen := 0
	for _, r := range app.GetRoutes(true) {
		if r.Method == http.MethodHead || !strings.HasPrefix(r.Path, basePath+"/") {
			continue
		}
		path := strings.ReplaceAll(strings.TrimPrefix(r.Path, basePath), ":id", "{id}")
		item := doc.Paths.Value(path)
		if !assert.NotNil(t, item, "undocumented path %s", path) {
			continue
		}
		assert.NotNil(t, item.GetOperation(r.Method), "undocumented operation %s %s", r.Method, path)
		seen++
	}
	assert.Equal(t, reflect.TypeOf((*ServerInterface)(nil)).Elem().NumMethod(), seen)
}

func TestOpenAPI_OperationIDsMatchHandlers(t *testing.T) {
	doc := loadOpenAPI(t)

	iface := reflect.TypeOf((*ServerInterface)(nil)).Elem()
	want := make(map[string]bool, iface.NumMethod())
	for i := 0; i < iface.NumMethod(); i++ {
		want[iface.Method(i).Name] = true
	}

	got := map[string]bool{}
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			require.NotEmpty(t, op.OperationID, "%s %s has no operationId", method, path)
			got[op.OperationID] = true
		}
	}
	assert.Equal(t, want, got)
}

func TestOpenAPI_PublicOperationsOptOutOfSecurity(t *testing.T) {
	doc := loadOpenAPI(t)

	for _, path := range []string{"/ping", "/signup", "/login"} {
		item := doc.Paths.Value(path)
		require.NotNil(t, item, path)
		for _, op := range item.Operations() {
			require.NotNil(t, op.Security, path)
			assert.Empty(t, *op.Security, path)
		}
	}
	assert.Len(t, doc.Security, 2)
}
