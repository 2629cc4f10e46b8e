package main

// General API documentation for swaggo. The swagger build tag serves it
// from internal/httpapi.
//
// @title           overlayd API
// @version         1.0
// @description     Plugin discovery and wheel-result dispatch for the spin-the-wheel overlay.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
