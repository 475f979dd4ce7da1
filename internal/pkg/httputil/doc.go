// Package httputil holds the JSON response and request-decoding helpers the
// API handlers share. Errors are always written as {"error", "code",
// "details"} objects so clients can switch on code.
package httputil
