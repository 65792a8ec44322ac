// Package splitter fans a batch event out into singleton events.
//
// A CloudTrail CreateTags notification delivered through EventBridge can tag a
// resource with many tags at once. Processing every tag in one invocation is
// slow and fails as a whole, so the Dispatcher splits the event: an event with
// N > 1 tags becomes N copies of itself, each carrying exactly one tag, and
// each copy is sent back to a queue. When a copy comes back through the queue
// it is unwrapped and dispatched again; with one tag it reaches the singleton
// consumer directly. Every queued message therefore terminates after one hop.
//
// The pipeline is:
//
//	raw payload -> envelope.Unwrapper -> event.Path (item locator)
//	            -> Dispatcher -> queue.Sender        (N != 1)
//	                          -> consumer.Consumer   (N == 1)
//
// The Dispatcher never modifies the event it is given. Each queued variant is
// built from a private deep copy, so a caller can keep using the original.
//
// # Results and errors
//
// Expected outcomes, including malformed and ignored events, are reported as a
// Result with an HTTP-style status code and a nil error. Only transport
// failures, consumer failures and poison messages are returned as errors; they
// carry codes from the errors package so callers can decide whether to retry.
package splitter
