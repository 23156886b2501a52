// Package model holds the value types shared by every participant:
// task and host identities in identity, and the function registry contract
// in types.
package model
