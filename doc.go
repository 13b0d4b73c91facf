// Package access provides authentication and authorization primitives:
// signed token issuance and verification, pluggable credential strategies,
// role/permission resolution with inheritance and wildcards, and account
// lockout, plus lifecycle extension points for downstream admin workflows.
//
// Subject lifecycle:
//   - Subjects carry a SubjectStatus field that is persisted via Bun. Statuses
//     cover pending, active, suspended, disabled, and archived flows so every
//     product can opt into the same invariants.
//   - SubjectStateMachine centralizes the transition graph, timestamp
//     handling, hooks, and persistence. Wire the shared Subjects repository
//     and invoke Transition with ActorRef metadata whenever an admin moves an
//     account.
//
// Authentication:
//   - Strategies (password, link, bearer) turn a Credential into a verified
//     Subject; Access wires them into a registry and issues access/refresh
//     token pairs on success. Failed password attempts feed the Lockout
//     tracker, which locks accounts after repeated failures and clears
//     expired locks lazily.
//
// Authorization:
//   - Roles grant "resource:action" permissions and may inherit from parent
//     roles. Resolver expands the inheritance graph into a PermissionSet that
//     honors "resource:*" and universal "*" wildcards at check time. Guard
//     turns a Requirement into an allow/deny decision with superuser and
//     self-access short-circuits.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Access, Guard,
//     Lockout, and the state machine to describe lifecycle, login, lockout,
//     and token events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before tokens are signed. Decorators may
//     enrich extension fields such as roles or metadata while protected
//     claims (sub, iss, aud, kind, exp, etc.) remain immutable.
package access
