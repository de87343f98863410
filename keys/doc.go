// Package keys provides the signing primitives behind did:key credentials.
//
// API stability:
//
// Stable:
//   - Keypair generation, seed derivation, Sign and Verify for every scheme
//     listed in didkey.Schemes.
//
// Experimental:
//   - Key files (PEM) and the filesystem-backed KeyStore. These are
//     client-side conveniences and are not part of the authentication protocol.
package keys
