// Package ratelimit provides admission control for form submissions.
//
// A Limiter counts requests per (action, identifier) pair in a fixed window.
// The first accepted request of a window creates the counter and attaches the
// window as its expiry; the counter disappears when the store expires it.
// Because windows are fixed, a client may be admitted up to twice the limit
// across a window boundary (a full burst at the end of one window and another
// at the start of the next). That is a property of the algorithm, not a bug.
//
// The check and the increment happen in one atomic store operation, so
// concurrent callers on the same key never over-admit. When the store cannot
// be reached the limiter denies the request.
package ratelimit
