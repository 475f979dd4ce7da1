// Package esp holds delivery.Adapter implementations for the supported
// email service providers.
package esp
