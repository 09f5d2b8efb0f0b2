// package bus carries transfer job messages from dispatch to execution.
//
// Delivery is at-least-once and fire-and-forget: publishers learn nothing about
// consumer-side completion. Drivers: in-memory queue, Redis list, SNS topic (publish only).
package bus
