// Package qrhttp serves the QR handshake over HTTP.
//
// A [Handler] is bound to one route name and exposes three endpoints:
//
//	GET <prefix>/generate               -> 200 {"qr": "<base64 png>", "code_hash": "...", "expires_in": 120}
//	GET <prefix>/confirm?code_hash=...  -> 200 | 403 | 404
//	GET <prefix>/status?code_hash=...   -> 202 pending | 200 result | 403 | 404
//
// Caller identity comes from [Config.Identity], which defaults to
// middleware.IdentityFromContext, so mount the handler behind
// middleware.Identity.
package qrhttp
