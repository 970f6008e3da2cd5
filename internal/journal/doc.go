// package journal stores journal entries and time capsules for the signed-in user.
//
// Entries are scoped by the identity provider's subject identifier, so two accounts sharing a database never see each
// other's entries. A time capsule is an entry sealed until a future date: its body is hidden until then and it cannot
// be unsealed early.
package journal
