package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Kulaté stoly API",
        "description": "Evaluation grid for calibration round tables.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "Sessions", "description": "Identity resolution and session tokens"},
        {"name": "Grid", "description": "Viewing, editing, saving and locking evaluations"},
        {"name": "Filters", "description": "Saved grid filters"},
        {"name": "Charts", "description": "Talent grids and trends"},
        {"name": "Export", "description": "CSV and PDF downloads"},
        {"name": "Observability", "description": "Runtime counters"}
    ],
    "paths": {
        "/sessions": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Open an editing session",
                "parameters": [
                    {"name": "X-Kbc-User-Roles", "in": "header", "type": "string", "required": true},
                    {"name": "X-Kbc-User-Email", "in": "header", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing identity", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Unknown role", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grid": {
            "get": {
                "tags": ["Grid"],
                "summary": "Current grid view",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "filter", "in": "query", "type": "string"},
                    {"name": "team", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No reports in scope", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grid/render": {
            "post": {
                "tags": ["Grid"],
                "summary": "Submit the rendered grid",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RenderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed table", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/changes": {
            "get": {
                "tags": ["Grid"],
                "summary": "Pending changes",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Grid"],
                "summary": "Discard pending changes",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Discarded"}
                }
            }
        },
        "/save": {
            "post": {
                "tags": ["Grid"],
                "summary": "Save pending changes",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Nothing to save or edit conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Reconciliation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lock": {
            "post": {
                "tags": ["Grid"],
                "summary": "Lock the rows of a view",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ViewQuery"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Nothing to lock", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/filters": {
            "get": {
                "tags": ["Filters"],
                "summary": "List my saved filters",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Filters"],
                "summary": "Save a filter",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SaveFilterRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/charts": {
            "get": {
                "tags": ["Charts"],
                "summary": "Talent grids and trend",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "filter", "in": "query", "type": "string"},
                    {"name": "team", "in": "query", "type": "boolean"},
                    {"name": "oneOnOne", "in": "query", "type": "string"},
                    {"name": "previous", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export.csv": {
            "get": {
                "tags": ["Export"],
                "summary": "Download the view as CSV",
                "produces": ["text/csv"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "filter", "in": "query", "type": "string"},
                    {"name": "team", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "data_ks.csv"}
                }
            }
        },
        "/export.pdf": {
            "get": {
                "tags": ["Export"],
                "summary": "Download the charts as PDF",
                "produces": ["application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "period", "in": "query", "type": "string"},
                    {"name": "filter", "in": "query", "type": "string"},
                    {"name": "team", "in": "query", "type": "boolean"},
                    {"name": "oneOnOne", "in": "query", "type": "string"},
                    {"name": "previous", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "kulate_stoly_charts.pdf"}
                }
            }
        },
        "/status": {
            "get": {
                "tags": ["Observability"],
                "summary": "Runtime counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Impersonation": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["BP", "LC", "MA", "DEV", "TEST"]},
                "email": {"type": "string"}
            }
        },
        "CreateSessionRequest": {
            "type": "object",
            "properties": {
                "act_as": {"$ref": "#/definitions/Impersonation"}
            }
        },
        "ViewQuery": {
            "type": "object",
            "properties": {
                "period": {"type": "string"},
                "filter": {"type": "string"},
                "team": {"type": "boolean"}
            }
        },
        "RenderRequest": {
            "type": "object",
            "required": ["rows"],
            "properties": {
                "period": {"type": "string"},
                "rows": {"type": "array", "items": {"type": "object"}}
            }
        },
        "SaveFilterRequest": {
            "type": "object",
            "required": ["name", "model"],
            "properties": {
                "name": {"type": "string"},
                "model": {"type": "object"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/APIError"}},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
