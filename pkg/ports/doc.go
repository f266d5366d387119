/*
Package ports defines the driven ports (interfaces) for the onboarding
wizard engine.

These interfaces decouple the core logic from external implementations,
allowing the persistence adapter to work with various local caches and
remote stores.

# Key Interfaces

  - LocalStore: a synchronous key-value string store (browser-localStorage
    shaped) used as the fast persistence tier.
  - RemoteStore: the durable remote tier, asynchronous and best-effort on
    save, authoritative on restore when the session is authenticated.
*/
package ports
