package openapi

func envelopeSchema(dataSchema map[string]any) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{"type": "integer"},
			"err":  map[string]any{"type": "string"},
			"data": dataSchema,
		},
		"required": []string{"code"},
	}
}

func rangeParams() []map[string]any {
	return []map[string]any{
		{"name": "range", "in": "query", "schema": map[string]any{"type": "string", "enum": []string{"7d", "30d", "90d"}}},
		{"name": "start", "in": "query", "schema": map[string]any{"type": "integer", "format": "int64"}, "description": "Epoch milliseconds, inclusive"},
		{"name": "end", "in": "query", "schema": map[string]any{"type": "integer", "format": "int64"}, "description": "Epoch milliseconds, exclusive"},
	}
}

func snapshotResponses() map[string]any {
	return map[string]any{
		"200": map[string]any{
			"description": "Snapshot",
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": envelopeSchema(map[string]any{"$ref": "#/components/schemas/Dashboard"}),
				},
			},
		},
		"400": map[string]any{"description": "Invalid range"},
	}
}

// Spec returns a minimal OpenAPI 3 spec for the bilan HTTP API.
// It is intentionally hand-maintained to avoid codegen tooling.
func Spec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "bilan API",
			"version": "0.1.0",
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{
					"tags":        []string{"system"},
					"summary":     "Health check",
					"responses":   map[string]any{"200": map[string]any{"description": "OK"}},
					"operationId": "healthz",
				},
			},
			"/api/status": map[string]any{
				"get": map[string]any{
					"tags":        []string{"system"},
					"summary":     "Get system status",
					"operationId": "getSystemStatus",
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Status",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": envelopeSchema(map[string]any{"type": "object"}),
								},
							},
						},
					},
				},
			},
			"/api/auth/login": map[string]any{
				"post": map[string]any{
					"tags":        []string{"auth"},
					"summary":     "Exchange the dashboard password for a token",
					"operationId": "login",
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{
									"type":       "object",
									"properties": map[string]any{"password": map[string]any{"type": "string"}},
									"required":   []string{"password"},
								},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "Token issued"},
						"401": map[string]any{"description": "Invalid credentials"},
						"503": map[string]any{"description": "Auth not configured"},
					},
				},
			},
			"/api/events": map[string]any{
				"post": map[string]any{
					"tags":        []string{"ingest"},
					"summary":     "Ingest one event or an array of events",
					"operationId": "ingestEvents",
					"requestBody": map[string]any{
						"required": true,
						"content": map[string]any{
							"application/json": map[string]any{
								"schema": map[string]any{
									"oneOf": []map[string]any{
										{"$ref": "#/components/schemas/EventPayload"},
										{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/EventPayload"}},
									},
								},
							},
						},
					},
					"responses": map[string]any{
						"200": map[string]any{
							"description": "Per-record outcome",
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"$ref": "#/components/schemas/BatchOutcome"},
								},
							},
						},
						"400": map[string]any{"description": "Invalid payload"},
						"503": map[string]any{"description": "Storage unavailable"},
					},
				},
				"get": map[string]any{
					"tags":        []string{"query"},
					"summary":     "Search events by window, types, and identities",
					"operationId": "searchEvents",
					"parameters": append(rangeParams(),
						map[string]any{"name": "types", "in": "query", "schema": map[string]any{"type": "string"}, "description": "Comma separated event types"},
						map[string]any{"name": "userId", "in": "query", "schema": map[string]any{"type": "string"}},
						map[string]any{"name": "journeyId", "in": "query", "schema": map[string]any{"type": "string"}},
						map[string]any{"name": "conversationId", "in": "query", "schema": map[string]any{"type": "string"}},
						map[string]any{"name": "limit", "in": "query", "schema": map[string]any{"type": "integer"}},
						map[string]any{"name": "offset", "in": "query", "schema": map[string]any{"type": "integer"}},
					),
					"responses": map[string]any{
						"200": map[string]any{"description": "Events"},
						"400": map[string]any{"description": "Invalid filter"},
					},
				},
			},
			"/api/events/track": map[string]any{
				"post": map[string]any{
					"tags":        []string{"ingest"},
					"summary":     "Queue events for asynchronous ingestion",
					"operationId": "trackEvents",
					"responses": map[string]any{
						"202": map[string]any{"description": "Accepted"},
						"400": map[string]any{"description": "Invalid payload"},
						"503": map[string]any{"description": "Queue unavailable"},
					},
				},
			},
			"/api/events/recent": map[string]any{
				"get": map[string]any{
					"tags":        []string{"query"},
					"summary":     "List newest events",
					"operationId": "recentEvents",
					"responses":   map[string]any{"200": map[string]any{"description": "Events"}},
				},
			},
			"/api/events/{eventId}": map[string]any{
				"get": map[string]any{
					"tags":        []string{"query"},
					"summary":     "Get one event by id",
					"operationId": "getEvent",
					"parameters": []map[string]any{
						{"name": "eventId", "in": "path", "required": true, "schema": map[string]any{"type": "string"}},
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "Event"},
						"404": map[string]any{"description": "Not found"},
					},
				},
			},
			"/api/turns/{turnId}/correlation": map[string]any{
				"get": map[string]any{
					"tags":        []string{"query"},
					"summary":     "Pair a turn with its vote by canonical turn id",
					"operationId": "turnCorrelation",
					"parameters": []map[string]any{
						{"name": "turnId", "in": "path", "required": true, "schema": map[string]any{"type": "string"}},
					},
					"responses": map[string]any{
						"200": map[string]any{"description": "Correlation"},
						"404": map[string]any{"description": "Turn not found"},
					},
				},
			},
			"/api/analytics/dashboard": map[string]any{
				"get": map[string]any{
					"tags":        []string{"analytics"},
					"summary":     "Full dashboard snapshot",
					"operationId": "dashboard",
					"parameters":  rangeParams(),
					"responses":   snapshotResponses(),
				},
			},
			"/api/analytics/votes": map[string]any{
				"get": map[string]any{
					"tags":        []string{"analytics"},
					"summary":     "Feedback, trust score, trend, and time series",
					"operationId": "votes",
					"parameters":  rangeParams(),
					"responses":   snapshotResponses(),
				},
			},
			"/api/analytics/journeys": map[string]any{
				"get": map[string]any{
					"tags":        []string{"analytics"},
					"summary":     "Journey occurrences and completion",
					"operationId": "journeys",
					"parameters":  rangeParams(),
					"responses":   snapshotResponses(),
				},
			},
			"/api/analytics/turns": map[string]any{
				"get": map[string]any{
					"tags":        []string{"analytics"},
					"summary":     "Conversation and turn outcomes",
					"operationId": "turns",
					"parameters":  rangeParams(),
					"responses":   snapshotResponses(),
				},
			},
			"/api/metrics/today": map[string]any{
				"get": map[string]any{
					"tags":        []string{"metrics"},
					"summary":     "Daily operational counters",
					"operationId": "metricsToday",
					"responses": map[string]any{
						"200": map[string]any{"description": "Counters"},
						"501": map[string]any{"description": "Metrics not configured"},
					},
				},
			},
			"/api/metrics/active": map[string]any{
				"get": map[string]any{
					"tags":        []string{"metrics"},
					"summary":     "Distinct active users per day or month",
					"operationId": "activeSeries",
					"responses":   map[string]any{"200": map[string]any{"description": "Series"}},
				},
			},
			"/api/metrics/types": map[string]any{
				"get": map[string]any{
					"tags":        []string{"metrics"},
					"summary":     "Event type distribution",
					"operationId": "typeDistribution",
					"responses":   map[string]any{"200": map[string]any{"description": "Items"}},
				},
			},
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"EventPayload": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"eventId":        map[string]any{"type": "string"},
						"userId":         map[string]any{"type": "string"},
						"eventType":      map[string]any{"type": "string", "enum": []string{"vote_cast", "conversation_started", "conversation_ended", "turn_created", "turn_completed", "turn_failed", "journey_step", "user_action"}},
						"timestamp":      map[string]any{"type": "integer", "format": "int64", "description": "Epoch milliseconds"},
						"journeyId":      map[string]any{"type": "string"},
						"conversationId": map[string]any{"type": "string"},
						"turnSequence":   map[string]any{"description": "Positive integer; zero or garbage normalizes to null"},
						"promptText":     map[string]any{"type": "string"},
						"aiResponse":     map[string]any{"type": "string"},
						"properties":     map[string]any{"type": "object"},
					},
					"required": []string{"userId", "eventType"},
				},
				"BatchOutcome": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"processed": map[string]any{"type": "integer"},
						"skipped":   map[string]any{"type": "integer"},
						"errors": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"index":    map[string]any{"type": "integer"},
									"event_id": map[string]any{"type": "string"},
									"reason":   map[string]any{"type": "string"},
								},
							},
						},
					},
				},
				"Dashboard": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"range":         map[string]any{"type": "object"},
						"bucket":        map[string]any{"type": "string", "enum": []string{"day", "week"}},
						"conversations": map[string]any{"type": "object"},
						"journeys":      map[string]any{"type": "object"},
						"feedback":      map[string]any{"type": "object"},
						"trustScore":    map[string]any{"type": "number", "nullable": true},
						"trend":         map[string]any{"type": "string", "enum": []string{"improving", "declining", "stable"}},
						"timeSeries":    map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
					},
				},
			},
		},
	}
}
