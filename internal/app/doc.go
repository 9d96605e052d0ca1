// Package app wires settings into the services the driving adapters use.
package app
