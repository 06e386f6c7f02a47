// Package authgate registers the Swagger 2.0 document for the authgate HTTP
// API with swag. It is maintained by hand alongside the handlers in
// internal/authgate/http; keep the two in step when routes change.
package authgate

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/authgate"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "System"
                ],
                "summary": "Public landing route",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.MessageResponse"
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Minimal health check",
                "responses": {
                    "200": {
                        "description": "status",
                        "schema": {
                            "$ref": "#/definitions/authsdk.StatusResponse"
                        }
                    }
                }
            }
        },
        "/livez": {
            "get": {
                "description": "Liveness probe endpoint returning basic service health status, uptime, and version information\nThis endpoint always returns 200 OK if the service is running",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Health Check Endpoint",
                "responses": {
                    "200": {
                        "description": "status, uptime, version",
                        "schema": {
                            "$ref": "#/definitions/authsdk.HealthResponse"
                        }
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Readiness probe endpoint pinging the credential and session stores",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Health"
                ],
                "summary": "Readiness Check Endpoint",
                "responses": {
                    "200": {
                        "description": "status, uptime, version, checks",
                        "schema": {
                            "$ref": "#/definitions/authsdk.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "status, uptime, version, checks - service not ready",
                        "schema": {
                            "$ref": "#/definitions/authsdk.HealthResponse"
                        }
                    }
                }
            }
        },
        "/protected-route": {
            "get": {
                "security": [
                    {
                        "BasicAuth": []
                    }
                ],
                "description": "Requires HTTP Basic credentials on every request.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Basic"
                ],
                "summary": "Basic-auth protected route",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.MessageResponse"
                        }
                    },
                    "401": {
                        "description": "Incorrect username or password",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        },
                        "headers": {
                            "WWW-Authenticate": {
                                "type": "string",
                                "description": "Basic"
                            }
                        }
                    }
                }
            }
        },
        "/token": {
            "post": {
                "description": "Exchanges a username and password for an HS256 access token.",
                "consumes": [
                    "application/x-www-form-urlencoded"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Token"
                ],
                "summary": "Issue a bearer token",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Username",
                        "name": "username",
                        "in": "formData",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Password",
                        "name": "password",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "access_token, token_type, expires_in",
                        "schema": {
                            "$ref": "#/definitions/authsdk.TokenResponse"
                        },
                        "headers": {
                            "Cache-Control": {
                                "type": "string",
                                "description": "no-store"
                            }
                        }
                    },
                    "400": {
                        "description": "missing fields or inactive user",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    },
                    "401": {
                        "description": "Incorrect username or password",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/profile": {
            "get": {
                "security": [
                    {
                        "BearerAuth": []
                    },
                    {
                        "SessionCookie": []
                    }
                ],
                "description": "Accepts a bearer token or the session cookie. A present Authorization header always selects bearer.",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "Profile"
                ],
                "summary": "Current user profile",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ProfileResponse"
                        }
                    },
                    "400": {
                        "description": "Inactive user",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    },
                    "401": {
                        "description": "Not authenticated, Invalid token, Token expired, User not found, Invalid or expired session",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/login": {
            "post": {
                "description": "Verifies the user, stores a server-side session and sets the signed session_id cookie.\nIn trust login mode only the username is required.",
                "consumes": [
                    "application/x-www-form-urlencoded"
                ],
                "tags": [
                    "Session"
                ],
                "summary": "Start a cookie session",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Username",
                        "name": "username",
                        "in": "formData",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Password (not required in trust mode)",
                        "name": "password",
                        "in": "formData"
                    }
                ],
                "responses": {
                    "303": {
                        "description": "Redirect to /profile with Set-Cookie"
                    },
                    "400": {
                        "description": "missing fields or inactive user",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    },
                    "401": {
                        "description": "Incorrect username or password",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/logout": {
            "post": {
                "description": "Deletes the server-side session (if any) and clears the cookie. Succeeds without a cookie.",
                "tags": [
                    "Session"
                ],
                "summary": "End the cookie session",
                "responses": {
                    "303": {
                        "description": "Redirect to / with an expired Set-Cookie"
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/authsdk.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "authsdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "detail": {
                    "description": "Detail is a human-readable reason, e.g. \"Token expired\"",
                    "type": "string"
                }
            }
        },
        "authsdk.MessageResponse": {
            "type": "object",
            "properties": {
                "message": {
                    "type": "string"
                }
            }
        },
        "authsdk.StatusResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                }
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {
                    "description": "AccessToken is the HS256 JWT to send as \"Authorization: Bearer <token>\"",
                    "type": "string"
                },
                "expires_in": {
                    "description": "ExpiresIn is the lifetime in seconds of the access token",
                    "type": "integer"
                },
                "token_type": {
                    "description": "TokenType is always \"bearer\"",
                    "type": "string"
                }
            }
        },
        "authsdk.ProfileResponse": {
            "type": "object",
            "properties": {
                "auth_method": {
                    "description": "AuthMethod is \"bearer\" or \"session\"",
                    "type": "string"
                },
                "full_name": {
                    "type": "string"
                },
                "username": {
                    "type": "string"
                }
            }
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "session_store": {
                    "type": "string"
                },
                "user_store": {
                    "type": "string"
                }
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {
                    "$ref": "#/definitions/authsdk.HealthChecks"
                },
                "status": {
                    "type": "string"
                },
                "uptime": {
                    "type": "string"
                },
                "version": {
                    "type": "string"
                }
            }
        }
    },
    "securityDefinitions": {
        "BasicAuth": {
            "type": "basic"
        },
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        },
        "SessionCookie": {
            "type": "apiKey",
            "name": "session_id",
            "in": "cookie"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "authgate API",
	Description:      "HTTP authentication with Basic credentials, HS256 bearer tokens and server-side cookie sessions.\n\nEvery error response has the body {\"detail\": \"...\"}.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
