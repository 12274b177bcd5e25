package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Session Auth API",
        "description": "Cookie-based dual-token session authentication",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, verification, logout and social sign-in"},
        {"name": "Tokens", "description": "Session diagnostics and forced invalidation"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Session cookies set", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/auth/verify": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Verify session",
                "responses": {
                    "200": {"description": "Session valid, cookies rotated when refreshed", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Session invalid", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout",
                "responses": {
                    "200": {"description": "Logged out", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Session invalid", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/auth/social-callback": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Complete social login",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SocialLoginResult"}}
                ],
                "responses": {
                    "200": {"description": "Session cookies set", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Tokens invalid", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/auth/social/google": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Start Google sign-in",
                "parameters": [
                    {"name": "returnTo", "in": "query", "type": "string"}
                ],
                "responses": {
                    "302": {"description": "Redirect to provider"},
                    "404": {"description": "Social login disabled", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/auth/social/google/callback": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Finish Google sign-in",
                "parameters": [
                    {"name": "state", "in": "query", "type": "string", "required": true},
                    {"name": "code", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "302": {"description": "Redirect to dashboard or login page"}
                }
            }
        },
        "/token/expiry": {
            "get": {
                "tags": ["Tokens"],
                "summary": "Session status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SessionStatusEnvelope"}},
                    "401": {"description": "Session invalid", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "User not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/token/invalidate": {
            "post": {
                "tags": ["Tokens"],
                "summary": "Invalidate session",
                "responses": {
                    "200": {"description": "Session invalidated", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "No valid session", "schema": {"$ref": "#/definitions/Envelope"}},
                    "503": {"description": "Store unavailable, session left intact", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "userid": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["userid", "password"]
        },
        "UserInfo": {
            "type": "object",
            "properties": {
                "userid": {"type": "string"},
                "usernm": {"type": "string"},
                "email": {"type": "string"},
                "userrole": {"type": "string"}
            }
        },
        "SocialLoginResult": {
            "type": "object",
            "properties": {
                "accessToken": {"type": "string"},
                "refreshToken": {"type": "string"},
                "user": {"$ref": "#/definitions/UserInfo"}
            },
            "required": ["accessToken", "refreshToken", "user"]
        },
        "SessionStatus": {
            "type": "object",
            "properties": {
                "userId": {"type": "string"},
                "userrole": {"type": "string"},
                "wasRefreshed": {"type": "boolean"},
                "accessTokenExpiry": {"type": "string", "format": "date-time"},
                "refreshTokenExpiry": {"type": "string", "format": "date-time"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "code": {"type": "string"},
                "user": {"$ref": "#/definitions/UserInfo"},
                "refreshed": {"type": "boolean"},
                "shouldRedirect": {"type": "boolean"},
                "redirectTo": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "SessionStatusEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"$ref": "#/definitions/SessionStatus"}
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
