// Package auth provides the serializable views of portal's authentication
// state that the CLI prints with -o json and -o yaml.
//
// The types mirror the session metadata and service outcomes but carry only
// display data: no tokens and no internal state.
package auth
