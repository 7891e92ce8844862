// Package sessionkit provides a client-side authentication session engine:
// session establishment and refresh against a remote identity provider,
// federated sign-in with anti-replay nonces, and fan-out coordination that
// keeps dependent subsystems consistent on every identity transition.
//
// The package is designed for concurrent application runtimes: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Engine], [Builder], [Config],
// [Bridge], and value types (AuthState, LifecycleEvent, Identity). Leaf
// concerns live in subpackages (token, validate, federated, store);
// coordination helpers live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Talk a concrete identity-provider wire protocol. The provider is an
//     abstract capability behind [IdentityProvider].
//   - Surface raw provider errors or any personally identifying data. Every
//     failure crosses the [ErrorMapper] and leaves as a closed-taxonomy
//     [*Error].
//   - Persist the access token. Only the refresh token reaches the secure
//     durable store; the short-lived artifact stays in memory.
//
// # Concurrency contract
//
// RefreshSession is single-flight: at most one provider refresh call is in
// flight per Engine at any time. Lifecycle transitions are emitted strictly
// after the state they describe is committed, and are processed as a queue,
// never interleaved.
package sessionkit
