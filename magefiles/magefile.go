//go:build mage

// Package main provides build targets for the shelf project using Mage.
//
// Usage:
//
//	mage build              Compile the shelf binary to bin/
//	mage test:all           Run all tests (unit + integration)
//	mage test:unit          Run only unit tests
//	mage test:integration   Run only integration tests (builds first)
//	mage lint               Run golangci-lint
//	mage clean              Remove build artifacts
//	mage install            Install shelf to GOPATH/bin
package main

const (
	binGo      = "go"
	binaryName = "shelf"
	binaryDir  = "bin"
	cmdDir     = "./cmd/shelf"
	modulePath = "github.com/mesh-intelligence/shelf"
)
