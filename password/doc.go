// Package password stores the device passwords used to log in before a QR
// code can be approved. Hashes are Argon2id in PHC form, so the cost
// parameters travel with each hash and [Argon2.NeedsUpgrade] can tell when
// a stored hash should be redone.
package password
