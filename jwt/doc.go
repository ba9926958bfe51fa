// Package jwt issues and verifies the bearer tokens around a QR handshake:
// device access tokens that identify the confirming phone, and QR login
// tokens handed to the screen once its session is accepted.
package jwt
