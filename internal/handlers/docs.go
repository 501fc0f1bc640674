package handlers

import (
	"net/http"

	"github.com/goccy/go-json"

	"energy-dashboard/internal/models"
)

type object = map[string]interface{}

func queryParam(name, description string, schema object) object {
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func errorResponse(description string) object {
	return jsonResponse(description, object{"$ref": "#/components/schemas/ErrorResponse"})
}

// selectionParams are shared by every endpoint that reads a selection
func selectionParams() []object {
	metricKeys := make([]string, 0, len(models.Metrics()))
	for _, m := range models.Metrics() {
		metricKeys = append(metricKeys, string(m.Key))
	}

	return []object{
		queryParam("country", "Country to include; repeat for several. Absent selects the defaults, blank selects none",
			object{"type": "string"}),
		queryParam("metric", "Metric key (default: oil_consumption)",
			object{"type": "string", "enum": metricKeys}),
	}
}

func nullableNumber() object {
	return object{"type": "number", "nullable": true}
}

// OpenAPISpec returns the OpenAPI 3.0 document for the dashboard API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "World Energy Dashboard API",
			"description": "Per-country energy consumption as a time series, a windowed world map aggregate and a downloadable export",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/api/metrics": object{
				"get": object{
					"summary": "List selectable metrics",
					"responses": object{
						"200": jsonResponse("Metric catalog", object{
							"type":  "array",
							"items": object{"$ref": "#/components/schemas/Metric"},
						}),
					},
				},
			},
			"/api/countries": object{
				"get": object{
					"summary": "List countries present in the dataset",
					"responses": object{
						"200": jsonResponse("Sorted country names", object{
							"type": "object",
							"properties": object{
								"countries": object{"type": "array", "items": object{"type": "string"}},
								"total":     object{"type": "integer"},
							},
						}),
					},
				},
			},
			"/api/timeseries": object{
				"get": object{
					"summary":     "Consumption over time",
					"description": "Rows from 1960 onward for the selected countries, ordered by year. Missing values are null and never filled.",
					"parameters":  selectionParams(),
					"responses": object{
						"200": jsonResponse("Time series", object{"$ref": "#/components/schemas/TimeSeries"}),
						"400": errorResponse("Unknown metric"),
					},
				},
			},
			"/api/map": object{
				"get": object{
					"summary":     "Windowed totals per country",
					"description": "Sum of the metric over 2000 to 2024 for every country, with missing values counted as zero. The country selection is ignored.",
					"parameters":  selectionParams()[1:],
					"responses": object{
						"200": jsonResponse("Geo aggregate", object{"$ref": "#/components/schemas/GeoAggregate"}),
						"400": errorResponse("Unknown metric"),
					},
				},
			},
			"/api/export": object{
				"get": object{
					"summary":     "Download the selected rows",
					"description": "The time-series rows (selected countries, 1960 onward) with columns country, year and the metric. Missing values are empty cells.",
					"parameters": append(selectionParams(),
						queryParam("format", "File format (default: csv)", object{"type": "string", "enum": []string{"csv", "xlsx"}}),
					),
					"responses": object{
						"200": object{
							"description": "File attachment",
							"content": object{
								"text/csv": object{"schema": object{"type": "string"}},
								"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": object{
									"schema": object{"type": "string", "format": "binary"},
								},
							},
						},
						"400": errorResponse("Unknown metric or unsupported format"),
					},
				},
			},
			"/dashboard": object{
				"get": object{
					"summary":    "Rendered dashboard page",
					"parameters": selectionParams(),
					"responses": object{
						"200": object{
							"description": "HTML page with both charts",
							"content":     object{"text/html": object{"schema": object{"type": "string"}}},
						},
					},
				},
			},
			"/ws": object{
				"get": object{
					"summary":     "Reactive dashboard session",
					"description": "Websocket. Send select_countries, select_metric, export or refresh actions; receive timeseries, map, export and error messages stamped with a sequence number.",
					"responses": object{
						"101": object{"description": "Switching protocols"},
					},
				},
			},
			"/health": object{
				"get": object{
					"summary": "Health check",
					"responses": object{
						"200": jsonResponse("Service is healthy", object{
							"type": "object",
							"properties": object{
								"status":    object{"type": "string"},
								"timestamp": object{"type": "string", "format": "date-time"},
							},
						}),
						"503": errorResponse("Backing store unreachable"),
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary": "Prometheus metrics",
					"responses": object{
						"200": object{
							"description": "Prometheus metrics in text format",
							"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
						},
					},
				},
			},
		},
		"components": object{
			"schemas": object{
				"Metric": object{
					"type": "object",
					"properties": object{
						"key":   object{"type": "string"},
						"label": object{"type": "string"},
					},
				},
				"TimeSeries": object{
					"type": "object",
					"properties": object{
						"metric":    object{"type": "string"},
						"label":     object{"type": "string"},
						"title":     object{"type": "string"},
						"countries": object{"type": "array", "items": object{"type": "string"}},
						"points": object{
							"type": "array",
							"items": object{
								"type": "object",
								"properties": object{
									"country": object{"type": "string"},
									"year":    object{"type": "integer"},
									"value":   nullableNumber(),
								},
							},
						},
					},
				},
				"GeoAggregate": object{
					"type": "object",
					"properties": object{
						"metric":     object{"type": "string"},
						"title":      object{"type": "string"},
						"start_year": object{"type": "integer"},
						"end_year":   object{"type": "integer"},
						"rows": object{
							"type": "array",
							"items": object{
								"type": "object",
								"properties": object{
									"country":           object{"type": "string"},
									"iso_code":          object{"type": "string", "nullable": true},
									"total_consumption": object{"type": "number"},
								},
							},
						},
					},
				},
				"ErrorResponse": object{
					"type": "object",
					"properties": object{
						"error":   object{"type": "string"},
						"message": object{"type": "string"},
						"code":    object{"type": "integer"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
