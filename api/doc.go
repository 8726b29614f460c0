// Package api provides the wire-level types for the weather intelligence
// HTTP API.
//
// # API Overview
//
// The service exposes a RESTful API for:
//   - Current weather and AI-generated natural-language summaries
//   - A tool-using chat assistant grounded in live weather data
//   - Community weather reports with upvotes and moderation clarification
//   - Historical weather analysis and suitability scoring for activities
//   - Location search and reverse geocoding
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
