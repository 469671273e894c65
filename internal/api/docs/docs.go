// Package docs registers the management API's Swagger spec with
// swaggo/swag so gin-swagger can serve it from /swagger/*any.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ldap-proxy Management API",
        "description": "Read-only observability API for the LDAP fallback proxy.",
        "version": "1.0"
    },
    "basePath": "/api/v1",
    "paths": {
        "/healthz": {
            "get": {
                "tags": ["system"],
                "summary": "Process liveness",
                "produces": ["application/json"],
                "security": [{"ApiKeyAuth": []}],
                "responses": { "200": { "description": "OK" } }
            }
        },
        "/stats": {
            "get": {
                "tags": ["system"],
                "summary": "Runtime statistics",
                "produces": ["application/json"],
                "security": [{"ApiKeyAuth": []}],
                "responses": { "200": { "description": "OK" } }
            }
        },
        "/config": {
            "get": {
                "tags": ["system"],
                "summary": "Sanitized config dump",
                "produces": ["application/json"],
                "security": [{"ApiKeyAuth": []}],
                "responses": { "200": { "description": "OK" } }
            }
        },
        "/audit/recent": {
            "get": {
                "tags": ["audit"],
                "summary": "Tail of the audit log",
                "produces": ["application/json"],
                "security": [{"ApiKeyAuth": []}],
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer", "required": false}
                ],
                "responses": { "200": { "description": "OK" } }
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "in": "header",
            "name": "X-API-Key"
        }
    }
}`

// SwaggerInfo holds the API metadata exposed at /swagger/*any.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "ldap-proxy Management API",
	Description:      "Read-only observability API for the LDAP fallback proxy.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
