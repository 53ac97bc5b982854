package swagger

import (
	"context"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	httpSwagger "github.com/swaggo/http-swagger"
)

// DocumentPath is where the OpenAPI contract ships relative to the working
// directory, matching the route that serves it.
const DocumentPath = "./api/openapi.yml"

// ValidateDocument loads the OpenAPI document and checks it against the
// OpenAPI 3 schema. The server refuses to start with a broken contract.
func ValidateDocument(ctx context.Context, path string) error {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return fmt.Errorf("validate openapi document %s: %w", path, err)
	}
	return nil
}

func Handler() http.Handler {
	// Serve the OpenAPI spec from api/openapi.yml
	return httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"), // URL to the OpenAPI spec served at root
	)
}
