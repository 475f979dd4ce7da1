// Package content turns a resolved recipient and a campaign brief into a
// personalized email using a text-generation model.
//
// The Generator renders the prompt, calls the Model with bounded retries,
// parses the subject and body out of the raw reply, scrubs bracketed
// placeholders, and renders the body as inline-styled HTML. Models live in
// internal/llm; this package never imports an SDK directly.
package content
