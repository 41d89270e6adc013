// Package drift holds the domain types shared across the reconciler:
// container and image identity records, drift events, and the reporting
// contract every component emits through.
package drift
