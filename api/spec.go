// Package api embeds the HTTP API contract.
package api

import _ "embed"

// OpenAPISpec is the OpenAPI 3 document served at /openapi.yaml and used
// for request validation.
//
//go:embed openapi.yaml
var OpenAPISpec []byte
