// Package chat relays natural-language commands to an LLM backend and
// executes the device actions it returns.
//
// The backend speaks the OpenAI chat-completions wire format with a
// single control_devices function. The service sends the system prompt,
// a device-state context block, and the trailing conversation window,
// executes returned actions against the device registry, and reports
// per-action results. History lives in memory only.
package chat
