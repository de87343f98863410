// Package model defines stable boundary types for API layers.
//
// These structs are the JSON bodies of the HTTP wire contract and the CLI's
// machine-readable output. Field names are part of the contract.
package model
