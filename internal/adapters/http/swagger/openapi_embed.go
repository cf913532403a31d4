package swagger

import _ "embed"

// OpenAPI is the embedded OpenAPI document for the served routes.
//
//go:embed openapi.yaml
var OpenAPI []byte
