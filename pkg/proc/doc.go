// Package proc holds the backend independent vocabulary used to drive a
// traced process: how a stop is classified and the errors a backend
// reports when the target goes away.
//
// Backends live in subpackages; native implements it on top of ptrace(2).
package proc
