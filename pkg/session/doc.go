/*
Package session implements the persistence adapter for wizard sessions.

It debounces answer-set mutations into full-snapshot saves across two tiers
(a synchronous local cache and a best-effort remote store), restores the most
authoritative snapshot available exactly once per session, and clears both
tiers on successful submission.
*/
package session
