// Package llm provides content.Model implementations backed by AWS Bedrock
// and OpenAI-compatible chat completion APIs.
package llm
