// Package crypto holds the channel key lifecycle and the message codec.
//
// Channel keys are 256-bit ChaCha20-Poly1305 keys generated once per
// conversation and stored server side as base64 text. This protects message
// bodies against disclosure of the database alone; anyone who can read the
// conversations table can read every message. It is not end-to-end encryption.
//
// Every Encrypt call draws a new random 96-bit nonce. Decrypt fails hard with
// ErrAuthenticationFailed when the tag does not verify.
package crypto
