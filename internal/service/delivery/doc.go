// Package delivery defines the contract between the send pipeline and an
// email service provider, and the pieces every outgoing message shares:
// signed unsubscribe links, the unsubscribe footer, and outbound throttling.
//
// Provider implementations live in internal/esp.
package delivery
