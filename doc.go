// Package climb is a climbing activity tracker API: users register and log
// in, then record their climbing sessions and routes and read dashboard
// aggregates over them.
//
// Identity:
//   - CredentialStore hashes passwords with bcrypt and records when a password
//     last changed. TokenService signs HS256 tokens carrying the user id.
//   - Gate authorizes requests: it verifies the bearer token, confirms the
//     subject still exists and rejects tokens issued before the last password
//     change.
//
// Ownership:
//   - Every Sessions and Routes call takes the owner id read from the
//     authorized request. A record that belongs to someone else is reported as
//     missing, never as forbidden.
//
// Activity sinks:
//   - ActivitySink receives register, login, password change and reset events.
//     Sinks run best effort, errors are logged and never fail the request.
package climb
