// Package docs holds the swagger document served under /swagger.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler
// annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "Operations Hub Dispatch API",
    "description": "Voice-driven maintenance dispatch: transcripts in, prioritized tickets with an assigned technician out.",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "AdminKey": {"type": "apiKey", "in": "header", "name": "X-Admin-Key"}
  },
  "paths": {
    "/healthz": {
      "get": {"tags": ["health"], "summary": "Health check", "produces": ["application/json"],
        "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}
    },
    "/api/technicians": {
      "get": {"tags": ["technicians"], "summary": "List technicians", "produces": ["application/json"],
        "parameters": [{"name": "status", "in": "query", "type": "string", "enum": ["available", "busy", "offline"]}],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid status"}}},
      "post": {"tags": ["technicians"], "summary": "Add a technician", "security": [{"AdminKey": []}],
        "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}}],
        "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed"}, "401": {"description": "Invalid admin key"}}}
    },
    "/api/technicians/{id}/status": {
      "patch": {"tags": ["technicians"], "summary": "Set technician status", "security": [{"AdminKey": []}],
        "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [
          {"name": "id", "in": "path", "required": true, "type": "string"},
          {"name": "body", "in": "body", "required": true, "schema": {"type": "object", "required": ["status"], "properties": {"status": {"type": "string", "enum": ["available", "busy", "offline"]}}}}
        ],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed"}, "404": {"description": "Not found"}}}
    },
    "/api/tickets": {
      "get": {"tags": ["tickets"], "summary": "List tickets, newest first", "produces": ["application/json"],
        "parameters": [
          {"name": "status", "in": "query", "type": "string", "enum": ["open", "closed"]},
          {"name": "priority", "in": "query", "type": "string", "enum": ["P1", "P2", "P3", "P4"]},
          {"name": "building", "in": "query", "type": "string"},
          {"name": "limit", "in": "query", "type": "integer"},
          {"name": "offset", "in": "query", "type": "integer"}
        ],
        "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid filter"}}}
    },
    "/api/tickets/{id}": {
      "get": {"tags": ["tickets"], "summary": "Ticket details", "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}}
    },
    "/api/tickets/{id}/close": {
      "post": {"tags": ["tickets"], "summary": "Close a ticket", "security": [{"AdminKey": []}], "produces": ["application/json"],
        "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
        "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}, "409": {"description": "Already closed"}}}
    },
    "/api/events": {
      "get": {"tags": ["events"], "summary": "Change stream (server-sent events)", "produces": ["text/event-stream"],
        "responses": {"200": {"description": "Stream of ready, change and ping events"}}}
    },
    "/api/utterances": {
      "post": {"tags": ["utterances"], "summary": "Submit a transcript", "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object", "required": ["transcript"], "properties": {
          "transcript": {"type": "string"}, "mode": {"type": "string", "enum": ["silent", "interactive"]}, "listener": {"type": "string"}}}}],
        "responses": {"200": {"description": "Decision, optional ticket, reply and audio"}, "400": {"description": "Validation failed"}}}
    },
    "/api/evaluate": {
      "post": {"tags": ["utterances"], "summary": "Evaluate a transcript without storing", "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object", "required": ["transcript"], "properties": {
          "transcript": {"type": "string"}, "reply": {"type": "string"}}}}],
        "responses": {"200": {"description": "Decision"}, "400": {"description": "Validation failed"}}}
    },
    "/api/chat": {
      "post": {"tags": ["assistant"], "summary": "Conversational reply", "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {"message": {"type": "string"}}}}],
        "responses": {"200": {"description": "{response}"}}}
    },
    "/api/speech": {
      "post": {"tags": ["speech"], "summary": "Synthesize speech", "consumes": ["application/json"], "produces": ["application/json"],
        "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {"text": {"type": "string"}}}}],
        "responses": {"200": {"description": "{audioContent}"}, "400": {"description": "{error}"}}}
    }
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
