// Package mocks provides generated mock implementations for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for
// the repository interfaces in internal/core. The generated files are checked
// in so the tree builds without running codegen first.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for JobRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/target/crawld/internal/core JobRepository

// Generate mock for QueueStateRepository interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=queue_state_repository_mock.go github.com/target/crawld/internal/core QueueStateRepository
