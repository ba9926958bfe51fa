// Package qrcode renders confirmation URLs as PNG QR codes.
//
// The default [Renderer] uses Medium error correction and a 256px image,
// which scans reliably from a phone held at screen distance. Use
// [GenerateBase64] or [GenerateDataURI] when the image is embedded in JSON or
// HTML.
package qrcode
