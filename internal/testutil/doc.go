// Package testutil provides fixtures shared by package tests: small models
// with known behaviour, a scripted random source and fixed ID generators.
package testutil
