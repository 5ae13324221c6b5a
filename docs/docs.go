// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/sign-up": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register an operator",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.OperatorCredentials"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/auth/sign-in": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Issue a bearer token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.OperatorCredentials"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}}
            }
        },
        "/api/v1/session": {
            "get": {"security": [{"BearerAuth": []}], "produces": ["application/json"], "tags": ["auth"], "summary": "Describe the current operator session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.SessionInfo"}}, "401": {"description": "Unauthorized"}}}
        },
        "/api/v1/rig/connect": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["rig"], "summary": "Connect to the rig",
                "responses": {"200": {"description": "OK"}, "502": {"description": "Bad Gateway"}}}
        },
        "/api/v1/rig/disconnect": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["rig"], "summary": "Disconnect from the rig",
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/rig/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["rig"],
                "summary": "Get rig status",
                "parameters": [{"type": "boolean", "in": "query", "name": "refresh", "description": "Poll STATUS before answering"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.SystemStatus"}}}
            }
        },
        "/api/v1/rig/move": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["motion"],
                "summary": "Absolute move",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.MoveRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/api/v1/rig/nudge": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "tags": ["motion"],
                "summary": "Directional step",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.NudgeRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/api/v1/rig/measure": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["rangefinder"], "summary": "Take a rangefinder measurement",
                "responses": {"200": {"description": "distance_m"}, "409": {"description": "Conflict"}, "503": {"description": "Service Unavailable"}}}
        },
        "/api/v1/logs": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["logs"],
                "summary": "List journal events",
                "parameters": [
                    {"type": "string", "in": "query", "name": "from"},
                    {"type": "string", "in": "query", "name": "to"},
                    {"enum": ["CONNECT", "DISCONNECT", "COMMAND", "ERROR", "ESTOP"], "type": "string", "in": "query", "name": "type"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        }
    },
    "definitions": {
        "handlers.OperatorCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string", "example": "s3cr3t"}, "username": {"type": "string", "example": "bench"}}
        },
        "handlers.SessionInfo": {
            "type": "object",
            "properties": {"operator_id": {"type": "integer"}, "rig_connected": {"type": "boolean"}, "polling": {"type": "boolean"}}
        },
        "handlers.MoveRequest": {
            "type": "object",
            "required": ["x", "y", "z"],
            "properties": {
                "x": {"type": "number", "example": 100},
                "y": {"type": "number", "example": 200},
                "z": {"type": "number", "example": 50},
                "pan": {"type": "number", "example": 45},
                "tilt": {"type": "number", "example": 90}
            }
        },
        "handlers.NudgeRequest": {
            "type": "object",
            "required": ["direction"],
            "properties": {
                "direction": {"type": "string", "example": "look-up"},
                "amount": {"type": "number", "example": 5}
            }
        },
        "models.AxisStates": {
            "type": "object",
            "properties": {
                "x": {"type": "string"}, "y": {"type": "string"}, "z": {"type": "string"},
                "pan": {"type": "string"}, "tilt": {"type": "string"}
            }
        },
        "models.SystemStatus": {
            "type": "object",
            "properties": {
                "x": {"type": "number"}, "y": {"type": "number"}, "z": {"type": "number"},
                "pan": {"type": "number"}, "tilt": {"type": "number"},
                "estop": {"type": "boolean"}, "moving": {"type": "boolean"}, "homed": {"type": "boolean"},
                "axes": {"$ref": "#/definitions/models.AxisStates"},
                "updated_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Space Maquette Rig API",
	Description:      "Host service for the motorized camera and rangefinder rig.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
