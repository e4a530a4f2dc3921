// Package throttle bounds and paces requests per upstream host.
//
// Each host gets a weighted semaphore capping in-flight requests and a
// rate.Limiter whose interval is an adaptive delay. After every response the
// delay moves toward latency/target_concurrency, so the number of concurrent
// requests a host sees converges on the target instead of a fixed sleep:
//
//	target = latency / target_concurrency
//	next   = max(target, (delay + target) / 2), clamped to [min, max]
//
// Non-200 responses may raise the delay but never lower it.
package throttle
