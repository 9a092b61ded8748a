package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Studio Asistencia API",
        "description": "Recurring verification and reconciliation engine for studio class attendance",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Verificaciones", "description": "Verification ledger: summary, batch execution, history, undo"},
        {"name": "Checkin", "description": "Manual presencial verification"},
        {"name": "Enrollments", "description": "Class balance store and reconciliation"},
        {"name": "Exports", "description": "History exports and signed downloads"}
    ],
    "paths": {
        "/verificaciones/resumen": {
            "get": {
                "tags": ["Verificaciones"],
                "summary": "Pending-work summary up to a cutoff date",
                "parameters": [
                    {"name": "cutoff", "in": "query", "type": "string", "description": "YYYY-MM-DD, defaults to today"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/verificaciones/ejecutar": {
            "post": {
                "tags": ["Verificaciones"],
                "summary": "Run automatic verifications for outstanding days",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExecuteBatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/verificaciones": {
            "get": {
                "tags": ["Verificaciones"],
                "summary": "List verification records",
                "parameters": [
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "method", "in": "query", "type": "string", "enum": ["presencial", "automatica"]},
                    {"name": "clientId", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/verificaciones/{id}": {
            "delete": {
                "tags": ["Verificaciones"],
                "summary": "Delete a verification record and restore its balance",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/verificaciones/export": {
            "post": {
                "tags": ["Exports"],
                "summary": "Export verification history as CSV or PDF",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a generated export with its signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/checkin": {
            "post": {
                "tags": ["Checkin"],
                "summary": "Register a presencial verification for today",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already verified today"},
                    "422": {"description": "Gated: overdue or no classes remaining"}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments and their balances",
                "parameters": [
                    {"name": "clientId", "in": "query", "type": "string"},
                    {"name": "activity", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/reconciliar": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Upsert enrollments from the client source",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{clientId}/{activity}/regularizar": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Reset an enrollment balance (administrative)",
                "parameters": [
                    {"name": "clientId", "in": "path", "required": true, "type": "string"},
                    {"name": "activity", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegularizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid admin secret"}
                }
            }
        }
    },
    "definitions": {
        "Enrollment": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "client_name": {"type": "string"},
                "activity_name": {"type": "string"},
                "visit_weekdays": {"type": "array", "items": {"type": "integer"}},
                "pending_classes": {"type": "integer"},
                "completed_classes": {"type": "integer"},
                "is_trial_class": {"type": "boolean"},
                "due_date": {"type": "string"},
                "last_updated": {"type": "string"}
            }
        },
        "VerificationRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "client_id": {"type": "string"},
                "client_name": {"type": "string"},
                "activity_name": {"type": "string"},
                "date": {"type": "string"},
                "method": {"type": "string", "enum": ["presencial", "automatica"]},
                "kind": {"type": "string", "enum": ["clase_regular", "clase_prueba"]},
                "verified_at": {"type": "string"}
            }
        },
        "ExecuteBatchRequest": {
            "type": "object",
            "properties": {
                "cutoff": {"type": "string", "description": "YYYY-MM-DD, defaults to today"},
                "items": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ExecuteBatchItem"},
                    "description": "Empty means every enrollment with pending work"
                }
            }
        },
        "ExecuteBatchItem": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "activity_name": {"type": "string"}
            },
            "required": ["client_id", "activity_name"]
        },
        "CheckinRequest": {
            "type": "object",
            "properties": {
                "client_id": {"type": "string"},
                "activity_name": {"type": "string", "description": "Optional when the client has one enrollment"}
            },
            "required": ["client_id"]
        },
        "RegularizeRequest": {
            "type": "object",
            "properties": {
                "pending_classes": {"type": "integer"},
                "admin_secret": {"type": "string"}
            },
            "required": ["pending_classes", "admin_secret"]
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "from": {"type": "string"},
                "to": {"type": "string"},
                "method": {"type": "string", "enum": ["presencial", "automatica"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["from", "to", "format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"}
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
