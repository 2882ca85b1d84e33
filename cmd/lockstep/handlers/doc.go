// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that execute the core
// functionality for each CLI command. Handlers are framework-agnostic and
// focus on the deployment workflow, delegating orchestration to the
// orchestration package and rendering results for the operator.
package handlers
