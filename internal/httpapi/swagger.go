//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggo/swag"
	httpSwagger "github.com/swaggo/http-swagger"
)

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/plugins": {"get": {"summary": "Discovered plugins by role", "responses": {"200": {"description": "OK"}}}},
        "/plugins/{role}/{id}": {"get": {"summary": "Resolve a plugin directory", "parameters": [
            {"name": "role", "in": "path", "required": true, "type": "string", "enum": ["view", "controller", "application"]},
            {"name": "id", "in": "path", "required": true, "type": "string"}
        ], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad role"}, "404": {"description": "Not found"}}}},
        "/applications": {"get": {"summary": "Application profile names", "responses": {"200": {"description": "OK"}}}},
        "/options": {"get": {"summary": "Active wheel options", "responses": {"200": {"description": "OK"}}}},
        "/results": {"post": {"summary": "Dispatch a wheel result", "consumes": ["application/json"], "parameters": [
            {"name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {
                "name": {"type": "string"}, "application": {"type": "string"}, "controller": {"type": "string"},
                "config": {"type": "object"}, "command": {"type": "string"}
            }}}
        ], "responses": {"202": {"description": "Accepted"}, "400": {"description": "Bad request"}, "404": {"description": "Unknown option"}}}},
        "/spin": {"post": {"summary": "Spin a random enabled option", "responses": {"202": {"description": "Accepted"}, "409": {"description": "Nothing enabled"}}}},
        "/queues": {"get": {"summary": "Queue stats and worker states", "responses": {"200": {"description": "OK"}}}},
        "/healthz": {"get": {"summary": "Liveness", "responses": {"200": {"description": "OK"}}}},
        "/readyz": {"get": {"summary": "Readiness", "responses": {"200": {"description": "Ready"}, "503": {"description": "Loading"}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "overlayd API",
	Description:      "Plugin discovery and wheel-result dispatch for the spin-the-wheel overlay.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// MountSwagger serves the UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
