// Package keys provides the issuer-key helpers used to sign and verify LCM
// receipt-batch checkpoints.
//
// API stability:
//
// Stable (SemVer-protected):
//   - Pure, deterministic primitives for issuer-key formatting/parsing,
//     role-seed derivation, and digest/signature helpers.
//
// Experimental:
//   - Filesystem-backed key storage and convenience helpers (KeyStore and
//     related functions). These are local-first utilities and are not part of
//     the long-term protocol contract.
package keys
