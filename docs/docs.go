// Package docs registra el documento OpenAPI que sirve /swagger.
// Se regenera desde las anotaciones con: swag init -g cmd/api/main.go
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
        "/patients/{patientID}/medications/{medicationID}/schedule": {
            "post": {
                "description": "Expande la regla de frecuencia del medicamento en dosis pending para el rango [from, to]. Idempotente.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Generar dosis de un medicamento",
                "parameters": [
                    {"type": "string", "description": "ID del paciente", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "description": "ID del medicamento", "name": "medicationID", "in": "path", "required": true},
                    {"description": "Rango de fechas YYYY-MM-DD", "name": "payload", "in": "body", "schema": {"$ref": "#/definitions/doses.scheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/doses.scheduleResponse"}},
                    "400": {"description": "rango o regla de frecuencia inválida", "schema": {"type": "string"}},
                    "401": {"description": "unauthorized", "schema": {"type": "string"}},
                    "404": {"description": "medication not found", "schema": {"type": "string"}}
                }
            }
        },
        "/patients/{patientID}/medications/{medicationID}/doses": {
            "delete": {
                "description": "Borra las dosis pending del medicamento con scheduled_time >= from.",
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Discontinuar un medicamento",
                "parameters": [
                    {"type": "string", "description": "ID del paciente", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "description": "ID del medicamento", "name": "medicationID", "in": "path", "required": true},
                    {"type": "string", "description": "Desde (RFC3339)", "name": "from", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}},
                    "404": {"description": "medication not found", "schema": {"type": "string"}}
                }
            }
        },
        "/patients/{patientID}/doses": {
            "get": {
                "description": "Lista las dosis del paciente ordenadas por scheduled_time. from inclusivo, to exclusivo.",
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Listar dosis de un paciente",
                "parameters": [
                    {"type": "string", "description": "ID del paciente", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "name": "from", "in": "query"},
                    {"type": "string", "name": "to", "in": "query"},
                    {"type": "string", "description": "CSV de estados", "name": "status", "in": "query"},
                    {"type": "string", "name": "medication_id", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/doses.doseResponse"}}},
                    "400": {"description": "Parámetros de filtro inválidos", "schema": {"type": "string"}}
                }
            }
        },
        "/patients/{patientID}/doses/today": {
            "get": {
                "description": "Clasifica las dosis del día en overdue / upcoming / later / completed.",
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Dosis de hoy por urgencia",
                "parameters": [
                    {"type": "string", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "name": "now", "in": "query"},
                    {"type": "integer", "name": "horizon_minutes", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.bucketsResponse"}}
                }
            }
        },
        "/patients/{patientID}/adherence": {
            "get": {
                "description": "adherence_rate = taken / (taken + missed + skipped) * 100, 0 sin dosis.",
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Adherencia de un paciente",
                "parameters": [
                    {"type": "string", "name": "patientID", "in": "path", "required": true},
                    {"type": "string", "name": "from", "in": "query", "required": true},
                    {"type": "string", "name": "to", "in": "query", "required": true},
                    {"type": "string", "name": "by", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.statsResponse"}},
                    "400": {"description": "rango inválido", "schema": {"type": "string"}}
                }
            }
        },
        "/doses/{doseID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Obtener una dosis",
                "parameters": [{"type": "string", "name": "doseID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.doseResponse"}},
                    "404": {"description": "dose not found", "schema": {"type": "string"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Editar una dosis",
                "parameters": [
                    {"type": "string", "name": "doseID", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/doses.updateDoseRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.doseResponse"}},
                    "422": {"description": "dose status is immutable", "schema": {"type": "string"}}
                }
            },
            "delete": {
                "tags": ["doses"],
                "summary": "Borrar una dosis pending",
                "parameters": [{"type": "string", "name": "doseID", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "422": {"description": "dose status is immutable", "schema": {"type": "string"}}
                }
            }
        },
        "/doses/{doseID}/taken": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Marcar dosis como tomada",
                "parameters": [
                    {"type": "string", "name": "doseID", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/doses.markTakenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.doseResponse"}},
                    "409": {"description": "dose already recorded by someone else", "schema": {"type": "string"}},
                    "422": {"description": "invalid dose transition", "schema": {"type": "string"}}
                }
            }
        },
        "/doses/{doseID}/skipped": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Marcar dosis como omitida",
                "parameters": [
                    {"type": "string", "name": "doseID", "in": "path", "required": true},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/doses.markSkippedRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.doseResponse"}},
                    "409": {"description": "dose already recorded by someone else", "schema": {"type": "string"}}
                }
            }
        },
        "/doses/{doseID}/missed": {
            "post": {
                "produces": ["application/json"],
                "tags": ["doses"],
                "summary": "Marcar dosis como perdida",
                "parameters": [{"type": "string", "name": "doseID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/doses.doseResponse"}},
                    "409": {"description": "dose already recorded by someone else", "schema": {"type": "string"}}
                }
            }
        },
        "/doses/{doseID}/reminders": {
            "get": {
                "description": "Recordatorios que dispararía la dosis después de now, con las preferencias del usuario autenticado.",
                "produces": ["application/json"],
                "tags": ["reminders"],
                "summary": "Previsualizar recordatorios de una dosis",
                "parameters": [
                    {"type": "string", "name": "doseID", "in": "path", "required": true},
                    {"type": "string", "name": "now", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/reminders.intentResponse"}}},
                    "404": {"description": "dose or preference not found", "schema": {"type": "string"}}
                }
            }
        }
    },
    "definitions": {
        "doses.doseResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "medication_id": {"type": "string"},
                "patient_id": {"type": "string"},
                "scheduled_time": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "taken", "missed", "skipped"]},
                "actual_time": {"type": "string"},
                "notes": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "doses.scheduleRequest": {
            "type": "object",
            "properties": {"from": {"type": "string"}, "to": {"type": "string"}}
        },
        "doses.scheduleResponse": {
            "type": "object",
            "properties": {
                "generated": {"type": "integer"},
                "created": {"type": "integer"},
                "skipped": {"type": "integer"},
                "doses": {"type": "array", "items": {"$ref": "#/definitions/doses.doseResponse"}}
            }
        },
        "doses.bucketsResponse": {
            "type": "object",
            "properties": {
                "now": {"type": "string"},
                "horizon_minutes": {"type": "integer"},
                "overdue": {"type": "array", "items": {"$ref": "#/definitions/doses.doseResponse"}},
                "upcoming": {"type": "array", "items": {"$ref": "#/definitions/doses.doseResponse"}},
                "later": {"type": "array", "items": {"$ref": "#/definitions/doses.doseResponse"}},
                "completed": {"type": "array", "items": {"$ref": "#/definitions/doses.doseResponse"}}
            }
        },
        "doses.statsResponse": {
            "type": "object",
            "properties": {
                "medication_id": {"type": "string"},
                "taken": {"type": "integer"},
                "missed": {"type": "integer"},
                "skipped": {"type": "integer"},
                "total": {"type": "integer"},
                "pending": {"type": "integer"},
                "adherence_rate": {"type": "number"}
            }
        },
        "doses.markTakenRequest": {
            "type": "object",
            "properties": {"actual_time": {"type": "string"}, "notes": {"type": "string"}}
        },
        "doses.markSkippedRequest": {
            "type": "object",
            "properties": {"reason": {"type": "string"}}
        },
        "doses.updateDoseRequest": {
            "type": "object",
            "properties": {"notes": {"type": "string"}, "status": {"type": "string"}, "actual_time": {"type": "string"}}
        },
        "reminders.intentResponse": {
            "type": "object",
            "properties": {
                "dose_id": {"type": "string"},
                "fire_at": {"type": "string"},
                "offset_minutes": {"type": "integer"},
                "suppressed_by_quiet_hours": {"type": "boolean"},
                "recipient_user_id": {"type": "string"},
                "medication_name": {"type": "string"},
                "channels": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Medtrack API",
	Description:      "Generación de dosis, registro de tomas, triage diario, adherencia y recordatorios.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
