// Package provider defines the backend-facing contracts shared by upstream
// adapters: the decoded record model, the incremental decoder interface, the
// streaming result element, and the diagnostics observer.
package provider
