package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "College Admin API",
        "description": "Academic term, timetable and assessment workflow engine",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Authentication"},
        {"name": "Batches", "description": "Cohort batches and semester windows"},
        {"name": "Terms", "description": "Semester progression"},
        {"name": "Subjects", "description": "Subject catalog"},
        {"name": "AcademicYears", "description": "Academic calendar years"},
        {"name": "Roster", "description": "Sections, students and faculty"},
        {"name": "Allocations", "description": "Subject faculty bindings"},
        {"name": "Timetable", "description": "Weekly timetable slots"},
        {"name": "Tutors", "description": "Tutor verification ranges"},
        {"name": "Assessments", "description": "Mark entry and approval pipeline"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/batches": {
            "get": {
                "tags": ["Batches"],
                "summary": "List batches",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Batches"],
                "summary": "Create batch",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/batches/{id}/window": {
            "put": {
                "tags": ["Batches"],
                "summary": "Set semester window",
                "responses": {
                    "200": {"description": "Window recorded"},
                    "400": {"description": "Invalid range"}
                }
            }
        },
        "/batches/{id}/advance": {
            "post": {
                "tags": ["Terms"],
                "summary": "Advance one batch",
                "responses": {"200": {"description": "Plan applied"}}
            }
        },
        "/terms/sweep": {
            "post": {
                "tags": ["Terms"],
                "summary": "Run progression sweep",
                "responses": {"200": {"description": "Sweep result"}}
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create subject",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/academic-years": {
            "get": {
                "tags": ["AcademicYears"],
                "summary": "List academic years",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["AcademicYears"],
                "summary": "Create academic year",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/academic-years/current": {
            "get": {
                "tags": ["AcademicYears"],
                "summary": "Current academic year",
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "None configured"}
                }
            }
        },
        "/allocations/general": {
            "put": {
                "tags": ["Allocations"],
                "summary": "Replace general allocations",
                "responses": {"200": {"description": "Replaced"}}
            }
        },
        "/timetable/slots": {
            "put": {
                "tags": ["Timetable"],
                "summary": "Place or clear a timetable slot",
                "responses": {
                    "200": {"description": "Placed"},
                    "409": {"description": "Faculty double-booked"}
                }
            }
        },
        "/tutor-assignments": {
            "post": {
                "tags": ["Tutors"],
                "summary": "Assign tutor range",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/marks": {
            "get": {
                "tags": ["Assessments"],
                "summary": "List marks",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Assessments"],
                "summary": "Enter marks",
                "responses": {"200": {"description": "Upserted"}}
            }
        },
        "/marks/verify": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Verify marks",
                "responses": {
                    "200": {"description": "Forwarded"},
                    "403": {"description": "No tutor assignment"}
                }
            }
        },
        "/marks/approve": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Approve marks",
                "responses": {"200": {"description": "Approved"}}
            }
        },
        "/marks/status": {
            "get": {
                "tags": ["Assessments"],
                "summary": "Mark status report",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
