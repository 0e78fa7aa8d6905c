// Package docs holds the Swagger document served at /swagger/*any.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag/v2"

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
        "/audit/failed": {
            "get": {
                "operationId": "listFailedAudit",
                "summary": "List unresolved failed attempts",
                "tags": [
                    "audit"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "integer",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "name": "pageSize",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/handler.AuditRecordResponse"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "403": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/audit/{recordId}/resubmit": {
            "post": {
                "operationId": "resubmitAudit",
                "summary": "Resubmit a failed ledger write",
                "tags": [
                    "audit"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Audit record ID",
                        "name": "recordId",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.ResubmitResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "403": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/collection": {
            "post": {
                "operationId": "recordCollection",
                "summary": "Record a collection event",
                "tags": [
                    "events"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Replays the first response for a retried request",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Collection event",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/traceability.CollectionInput"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Ledger confirmed",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.EventResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "200": {
                        "description": "Stored locally, ledger write pending",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.EventResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "403": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "description": "Creates an herb batch, binds a trace code and submits RecordCollection to the ledger",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/processing": {
            "post": {
                "operationId": "recordProcessingStep",
                "summary": "Record a processing step",
                "tags": [
                    "events"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Replays the first response for a retried request",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Processing step",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/traceability.ProcessingInput"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.EventResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/quality-test": {
            "post": {
                "operationId": "recordQualityTest",
                "summary": "Record a quality test",
                "tags": [
                    "events"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Replays the first response for a retried request",
                        "name": "Idempotency-Key",
                        "in": "header"
                    },
                    {
                        "description": "Quality test result",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/traceability.QualityTestInput"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.EventResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/items": {
            "get": {
                "operationId": "listItems",
                "summary": "List items",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "integer",
                        "name": "page",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "name": "pageSize",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "name": "status",
                        "in": "query",
                        "enum": [
                            "COLLECTED",
                            "TESTED",
                            "FAILED_TEST",
                            "PROCESSED",
                            "DISTRIBUTED"
                        ]
                    },
                    {
                        "type": "string",
                        "name": "species",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "name": "collectorId",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/handler.ItemResponse"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/items/{itemId}": {
            "get": {
                "operationId": "getItem",
                "summary": "Get an item",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Item ID",
                        "name": "itemId",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.ItemResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/items/{itemId}/audit": {
            "get": {
                "operationId": "listItemAudit",
                "summary": "List an item's ledger attempts",
                "tags": [
                    "audit"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Item ID",
                        "name": "itemId",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/handler.AuditRecordResponse"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "403": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/items/{itemId}/journey": {
            "get": {
                "operationId": "getItemJourney",
                "summary": "Get an item's journey",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Item ID",
                        "name": "itemId",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "boolean",
                        "description": "Include audit detail",
                        "name": "detailed",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/ledger.Journey"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/items/{itemId}/metadata": {
            "patch": {
                "operationId": "updateItemMetadata",
                "summary": "Merge item metadata",
                "tags": [
                    "items"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Item ID",
                        "name": "itemId",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Metadata patch",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handler.UpdateMetadataRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.ItemResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "400": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "403": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "409": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "description": "Top-level keys are overwritten, nested objects merged, null removes a key",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/trace": {
            "post": {
                "operationId": "lookupTrace",
                "summary": "Resolve a trace code",
                "tags": [
                    "trace"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "description": "Scanned code",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handler.TraceRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.PublicTraceResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "429": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "consumes": [
                    "application/json"
                ],
                "description": "Public consumer view of a batch. No authentication required."
            }
        },
        "/trace-codes/{code}/deactivate": {
            "post": {
                "operationId": "deactivateTraceCode",
                "summary": "Deactivate a trace code",
                "tags": [
                    "trace"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "type": "string",
                        "description": "Trace code",
                        "name": "code",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/dto.Response"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/handler.TraceCodeResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "403": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    },
                    "404": {
                        "description": "Error",
                        "schema": {
                            "$ref": "#/definitions/dto.Response"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "dto.ErrorInfo": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "requestId": {
                    "type": "string"
                },
                "details": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.ValidationDetail"
                    }
                }
            }
        },
        "dto.Meta": {
            "type": "object",
            "properties": {
                "total": {
                    "type": "integer"
                },
                "page": {
                    "type": "integer"
                },
                "pageSize": {
                    "type": "integer"
                },
                "totalPages": {
                    "type": "integer"
                }
            }
        },
        "dto.Response": {
            "type": "object",
            "properties": {
                "success": {
                    "type": "boolean"
                },
                "data": {},
                "error": {
                    "$ref": "#/definitions/dto.ErrorInfo"
                },
                "meta": {
                    "$ref": "#/definitions/dto.Meta"
                }
            }
        },
        "dto.ValidationDetail": {
            "type": "object",
            "properties": {
                "field": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "handler.AuditRecordResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "itemId": {
                    "type": "string"
                },
                "operation": {
                    "type": "string"
                },
                "outcome": {
                    "type": "string"
                },
                "txId": {
                    "type": "string"
                },
                "payload": {
                    "$ref": "#/definitions/ledger.Call"
                },
                "payloadHash": {
                    "type": "string"
                },
                "error": {
                    "type": "string"
                },
                "resubmissionOf": {
                    "type": "string"
                },
                "createdAt": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "handler.EventResponse": {
            "type": "object",
            "properties": {
                "item": {
                    "$ref": "#/definitions/handler.ItemResponse"
                },
                "operation": {
                    "type": "string"
                },
                "traceCode": {
                    "type": "string"
                },
                "ledgerConfirmed": {
                    "type": "boolean"
                },
                "txId": {
                    "type": "string"
                },
                "ledgerError": {
                    "$ref": "#/definitions/handler.LedgerErrorResponse"
                },
                "auditRecordId": {
                    "type": "string"
                },
                "reaffirmed": {
                    "type": "boolean"
                }
            }
        },
        "handler.ItemResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "species": {
                    "type": "string"
                },
                "collectorId": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "metadata": {
                    "type": "object",
                    "additionalProperties": true
                },
                "version": {
                    "type": "integer"
                },
                "createdAt": {
                    "type": "string",
                    "format": "date-time"
                },
                "updatedAt": {
                    "type": "string",
                    "format": "date-time"
                },
                "traceCodes": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/handler.TraceCodeResponse"
                    }
                }
            }
        },
        "handler.LedgerErrorResponse": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                }
            }
        },
        "handler.PublicLocation": {
            "type": "object",
            "properties": {
                "region": {
                    "type": "string"
                },
                "latitude": {
                    "type": "number"
                },
                "longitude": {
                    "type": "number"
                }
            }
        },
        "handler.PublicTraceEntry": {
            "type": "object",
            "properties": {
                "kind": {
                    "type": "string"
                },
                "timestamp": {
                    "type": "string",
                    "format": "date-time"
                },
                "txId": {
                    "type": "string"
                },
                "confirmed": {
                    "type": "boolean"
                },
                "failed": {
                    "type": "boolean"
                }
            }
        },
        "handler.PublicTraceResponse": {
            "type": "object",
            "properties": {
                "itemId": {
                    "type": "string"
                },
                "species": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "collectedAt": {
                    "type": "string"
                },
                "location": {
                    "$ref": "#/definitions/handler.PublicLocation"
                },
                "degraded": {
                    "type": "boolean"
                },
                "entries": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/handler.PublicTraceEntry"
                    }
                }
            }
        },
        "handler.ResubmitResponse": {
            "type": "object",
            "properties": {
                "record": {
                    "$ref": "#/definitions/handler.AuditRecordResponse"
                },
                "ledgerConfirmed": {
                    "type": "boolean"
                },
                "ledgerError": {
                    "$ref": "#/definitions/handler.LedgerErrorResponse"
                }
            }
        },
        "handler.TraceCodeResponse": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "itemId": {
                    "type": "string"
                },
                "active": {
                    "type": "boolean"
                },
                "createdAt": {
                    "type": "string",
                    "format": "date-time"
                },
                "deactivatedAt": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "handler.TraceRequest": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                }
            },
            "required": [
                "code"
            ]
        },
        "handler.UpdateMetadataRequest": {
            "type": "object",
            "properties": {
                "metadata": {
                    "type": "object",
                    "additionalProperties": true
                }
            },
            "required": [
                "metadata"
            ]
        },
        "ledger.Call": {
            "type": "object",
            "properties": {
                "function": {
                    "type": "string"
                },
                "args": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            }
        },
        "ledger.Journey": {
            "type": "object",
            "properties": {
                "itemId": {
                    "type": "string"
                },
                "source": {
                    "type": "string"
                },
                "degraded": {
                    "type": "boolean"
                },
                "ledgerError": {
                    "type": "string"
                },
                "entries": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/ledger.JourneyEntry"
                    }
                }
            }
        },
        "ledger.JourneyEntry": {
            "type": "object",
            "properties": {
                "txId": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "timestamp": {
                    "type": "string",
                    "format": "date-time"
                },
                "source": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "details": {
                    "type": "object",
                    "additionalProperties": true
                },
                "auditRecordId": {
                    "type": "string"
                },
                "error": {
                    "type": "string"
                }
            }
        },
        "traceability.CollectionInput": {
            "type": "object",
            "properties": {
                "species": {
                    "type": "string"
                },
                "collectorId": {
                    "type": "string"
                },
                "latitude": {
                    "type": "number"
                },
                "longitude": {
                    "type": "number"
                },
                "region": {
                    "type": "string"
                },
                "collectedAt": {
                    "type": "string",
                    "format": "date-time"
                },
                "quality": {
                    "type": "integer"
                },
                "notes": {
                    "type": "string"
                }
            },
            "required": [
                "species",
                "quality"
            ]
        },
        "traceability.ProcessingInput": {
            "type": "object",
            "properties": {
                "itemId": {
                    "type": "string"
                },
                "processorId": {
                    "type": "string"
                },
                "stepType": {
                    "type": "string"
                },
                "conditions": {
                    "type": "object",
                    "additionalProperties": true
                },
                "processedAt": {
                    "type": "string",
                    "format": "date-time"
                }
            },
            "required": [
                "itemId",
                "stepType"
            ]
        },
        "traceability.QualityTestInput": {
            "type": "object",
            "properties": {
                "itemId": {
                    "type": "string"
                },
                "labId": {
                    "type": "string"
                },
                "testType": {
                    "type": "string"
                },
                "results": {
                    "type": "object",
                    "additionalProperties": true
                },
                "passed": {
                    "type": "boolean"
                },
                "testedAt": {
                    "type": "string",
                    "format": "date-time"
                }
            },
            "required": [
                "itemId",
                "testType",
                "passed"
            ]
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Bearer token authentication. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Herb Trace API",
	Description:      "Herb batch traceability with dual writes to the local store and a Hyperledger Fabric ledger",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
