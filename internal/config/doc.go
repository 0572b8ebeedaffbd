// Package config provides configuration management for the Canvas
// page-view export tools.
//
// Configuration is loaded from environment variables with the CANVAS
// prefix (CANVAS_API_KEY, CANVAS_BASE_URL, CANVAS_HTTP_TIMEOUT, ...). A
// config.yaml file in the working directory may supply api_key, base_url,
// and logging.file_path when the environment leaves them empty; all other
// fields are environment-only.
//
// The two required values are the API credential and the API root:
//
//	CANVAS_API_KEY=10224~...
//	CANVAS_BASE_URL=https://school.instructure.com/api/v1
//
// Everything else has a safe default. Validation failures surface as
// errors.ConfigError, which callers treat as fatal.
package config
