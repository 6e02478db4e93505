// Admission checks for chat messages and commands on game servers.
//
// Every message a player (or the console) sends is run through a fixed sequence of gates before it is delivered: cross-sender repetition ("parrot") and join flood detection, movement and post-join cooldown requirements, per-sender delay and rate limits, caps correction, a regex rule pass, and self-repetition. Accepted messages are recorded in the sender's history and may get light grammar fixes.
//
// The pieces live in sub-packages: `engine` runs the gates and owns sender sessions, `rules` parses and applies rule files, `escalate` decides what a violation costs (warning points, threshold commands), and the `*store` packages hold shared state in memory or redis. This package has the integrations which talk to outside services.
//
// See `cmd/chatmod` for a command-line harness built on these packages.
package automod
