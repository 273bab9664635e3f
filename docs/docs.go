// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g main.go
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
        "/ping": {
            "get": {
                "description": "Pings the server and every backing service",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Service Unavailable"}
                }
            }
        },
        "/games/{game_id}/participants": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["participants"],
                "summary": "Register a participant",
                "parameters": [
                    {"type": "integer", "description": "Game ID", "name": "game_id", "in": "path", "required": true},
                    {"description": "Registration", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controllers.registerRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/controllers.ParticipantView"}},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/games/{game_id}/rounds": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Rounds of a game",
                "parameters": [{"type": "integer", "description": "Game ID", "name": "game_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/controllers.RoundView"}}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/games/{game_id}/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Recent events of a game",
                "parameters": [
                    {"type": "integer", "description": "Game ID", "name": "game_id", "in": "path", "required": true},
                    {"type": "integer", "description": "How many events (max 200)", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/participants/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["participants"],
                "summary": "Participant state",
                "parameters": [{"type": "integer", "description": "Participant ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/controllers.ParticipantView"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/participants/{id}/start": {
            "post": {
                "produces": ["application/json"],
                "tags": ["participants"],
                "summary": "Start playing",
                "parameters": [{"type": "integer", "description": "Participant ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/controllers.OutcomeView"}},
                    "402": {"description": "Payment Required"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/controllers.OutcomeView"}},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/participants/{id}/answers": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["participants"],
                "summary": "Answer the current question",
                "parameters": [
                    {"type": "integer", "description": "Participant ID", "name": "id", "in": "path", "required": true},
                    {"description": "Answer", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controllers.answerRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/controllers.OutcomeView"}},
                    "402": {"description": "Payment Required"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/controllers.OutcomeView"}},
                    "409": {"description": "Conflict"},
                    "410": {"description": "Gone", "schema": {"$ref": "#/definitions/controllers.OutcomeView"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/controllers.OutcomeView"}}
                }
            }
        },
        "/rounds/{round_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Round state",
                "parameters": [{"type": "integer", "description": "Round ID", "name": "round_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/controllers.RoundView"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/admin/rounds/{round_id}/cancel": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["rounds"],
                "summary": "Cancel a round",
                "parameters": [
                    {"type": "integer", "description": "Round ID", "name": "round_id", "in": "path", "required": true},
                    {"description": "Reason", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/controllers.cancelRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/controllers.RoundView"}},
                    "401": {"description": "Unauthorized"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/payments/webhook": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Payment provider callback",
                "parameters": [
                    {"type": "string", "description": "Bearer HS256 token", "name": "Authorization", "in": "header", "required": true},
                    {"description": "Payment status", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/controllers.paymentWebhook"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "401": {"description": "Unauthorized"},
                    "409": {"description": "Conflict"}
                }
            }
        }
    },
    "definitions": {
        "controllers.registerRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {"email": {"type": "string"}}
        },
        "controllers.answerRequest": {
            "type": "object",
            "required": ["question_number", "answer"],
            "properties": {"question_number": {"type": "integer"}, "answer": {"type": "string"}}
        },
        "controllers.cancelRequest": {
            "type": "object",
            "properties": {"reason": {"type": "string"}}
        },
        "controllers.paymentWebhook": {
            "type": "object",
            "required": ["participant_id", "status"],
            "properties": {"participant_id": {"type": "integer"}, "status": {"type": "string", "enum": ["paid", "failed", "refunded"]}}
        },
        "controllers.ParticipantView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "round_id": {"type": "integer"},
                "game_id": {"type": "integer"},
                "email": {"type": "string"},
                "payment_status": {"type": "string"},
                "game_status": {"type": "string"},
                "failure_reason": {"type": "string"},
                "current_question": {"type": "integer"},
                "pre_payment_ms": {"type": "integer"},
                "post_payment_ms": {"type": "integer"},
                "total_time_ms": {"type": "integer"},
                "paused": {"type": "boolean"},
                "admitted": {"type": "boolean"},
                "is_winner": {"type": "boolean"},
                "is_fraudulent": {"type": "boolean"},
                "fraud_score": {"type": "number"},
                "completed_at": {"type": "string"}
            }
        },
        "controllers.RoundView": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "game_id": {"type": "integer"},
                "round_number": {"type": "integer"},
                "status": {"type": "string"},
                "participant_count": {"type": "integer"},
                "paid_participant_count": {"type": "integer"},
                "started_at": {"type": "string"},
                "full_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "cancelled_at": {"type": "string"},
                "winner_participant_id": {"type": "integer"}
            }
        },
        "controllers.OutcomeView": {
            "type": "object",
            "properties": {
                "outcome": {"type": "string"},
                "participant": {"$ref": "#/definitions/controllers.ParticipantView"},
                "answer": {
                    "type": "object",
                    "properties": {
                        "question_number": {"type": "integer"},
                        "answer": {"type": "string"},
                        "correct": {"type": "boolean"},
                        "time_taken_ms": {"type": "integer"}
                    }
                }
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
	Title:            "Quizrace API",
	Description:      "Timed pay-to-play trivia rounds",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
