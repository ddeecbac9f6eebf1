// Package domain contains the core concepts of the ledger system:
// principals, message logs, groups and balances. Authentication happens
// at the boundary; the core never verifies identity.
package domain

// Principal identifies an authenticated caller or account.
type Principal string

// Nobody is the null principal. It is a valid message receiver but
// never a valid funds recipient.
const Nobody Principal = ""
